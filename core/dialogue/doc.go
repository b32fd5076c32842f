// Package dialogue runs per-user multi-step forms. A Machine keeps one Session
// per identity, validates each answer against its Step and commits the
// collected answers to the profile store when the last step is answered.
package dialogue
