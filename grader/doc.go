// Package grader provides the core types of the case-eval scoring engine.
//
// # Reading Guide
//
// Start with these files to understand the engine:
//   - types.go: transcript messages, clinical orders and case context (the inbound contract)
//   - collaborator.go: the injected text-understanding collaborators
//   - errors.go: configuration and classification failure kinds
//
// # Architecture
//
// The grader package defines types and interfaces; the pipeline stages live in
// sub-packages, in dependency order:
//   - grader/rubric/: Rubric Registry (dimension entries, difficulty profiles)
//   - grader/classify/: Classifier (CAU counting, streaks, order analysis)
//   - grader/score/: Scorer (threshold selection, tie-break policy, clamping)
//   - grader/report/: Report Assembler (feedback report and its renderings)
//   - grader/engine/: the evaluation pipeline and batch runner
//   - grader/trace/: decision trace of every dimension selection
//
// Collaborator adapters (lexical classifier, LLM verdict parser, note comparator)
// live in grader/collab/. Session files are loaded by grader/session/.
//
// # Key Interfaces
//
//   - CAUClassifier: labels one student message as question, instruction, action or acknowledgement
//   - NoteComparator: judges whether a student note matches the reference note
package grader
