package runtime

import "fmt"

// Refiner rewrites a model prompt for a retry attempt. reason is the
// recorded failure of the previous attempt; attempt is the 1-based number
// of the attempt about to run.
type Refiner func(prompt string, reason string, attempt int) string

// DefaultRefiner appends a correction instruction naming the violation, so
// a model that missed the contract sees what to fix instead of replaying
// the same mistake.
func DefaultRefiner(prompt string, reason string, attempt int) string {
	if reason == "" {
		return prompt
	}
	return fmt.Sprintf("%s\n\nYour previous reply was rejected: %s\nAnswer again and follow the required output format exactly.", prompt, reason)
}
