// Package cli is the terminal presenter for the onboarding flow. It renders
// whichever step the flow machine reports, forwards user input back into the
// machine, and stops listening once it has torn down.
//
// The package owns no flow logic: validation, branching and persistence all
// live in the flow machine and its collaborators.
package cli
