package net

import (
	"context"
	"fmt"
	"slices"
	"strconv"
)

// HandSlots is the number of cards in a dealt hand; discard indices are
// zero-based slots into it.
const HandSlots = 6

// CollectDiscards prompts for count (1 or 2) distinct hand slots and
// delivers each valid one on out, in order, then closes out. It re-prompts
// on bad input without limit and only returns early when ctx is cancelled
// or the terminal input ends. It never touches the connection.
func CollectDiscards(ctx context.Context, term *Terminal, count int, out chan<- uint8) error {
	defer close(out)

	var prompts []string
	switch count {
	case 1:
		prompts = []string{fmt.Sprintf("Enter the index (0 - %d) of the card to discard", HandSlots-1)}
	case 2:
		prompts = []string{
			fmt.Sprintf("Enter the index (0 - %d) of the first card to discard", HandSlots-1),
			fmt.Sprintf("Enter the index (0 - %d) of the second card to discard", HandSlots-1),
		}
	default:
		return fmt.Errorf("collect discards: count %d, want 1 or 2", count)
	}

	chosen := make([]uint8, 0, count)
	for _, prompt := range prompts {
		idx, err := readSlot(ctx, term, prompt, chosen)
		if err != nil {
			return err
		}
		select {
		case out <- idx:
		case <-ctx.Done():
			return ctx.Err()
		}
		chosen = append(chosen, idx)
	}
	return nil
}

func readSlot(ctx context.Context, term *Terminal, prompt string, chosen []uint8) (uint8, error) {
	for {
		line, err := term.Prompt(ctx, prompt)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 0 || n >= HandSlots {
			term.Printf("Enter a number between 0 and %d\n", HandSlots-1)
			continue
		}
		if slices.Contains(chosen, uint8(n)) {
			term.Println("That card is already being discarded; pick another")
			continue
		}
		return uint8(n), nil
	}
}
