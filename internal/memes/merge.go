// Package memes merges meme result lists from several backend searches.
package memes

import "memebot/internal/domain"

// Merge concatenates the lists in order and drops later records whose ID was
// already seen. The first occurrence wins.
func Merge(lists ...[]domain.Meme) []domain.Meme {
	total := 0
	for _, l := range lists {
		total += len(l)
	}
	out := make([]domain.Meme, 0, total)
	seen := make(map[domain.MemeID]struct{}, total)
	for _, l := range lists {
		for _, m := range l {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}
