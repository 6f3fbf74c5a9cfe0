// Package hygiene implements repository checks run in CI and by
// "skillctl check": the skill structure check and the text encoding check.
//
// Both checks return a Report listing findings. A report with findings is
// converted to a check_failed error at the CLI boundary.
package hygiene
