package leaderboard

import "strings"

const podiumPlaces = 3

type PodiumEntry struct {
	Rank   int    `json:"rank"`
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// SelectPodium returns one entry per rank 1..3 that has at least one win.
// Players sharing a rank are joined into a single entry. The result may be
// shorter than three.
func SelectPodium(rows []RankedRow) []PodiumEntry {
	byRank := make(map[int][]RankedRow)
	for _, r := range rows {
		if r.Rank >= 1 && r.Rank <= podiumPlaces {
			byRank[r.Rank] = append(byRank[r.Rank], r)
		}
	}

	podium := make([]PodiumEntry, 0, podiumPlaces)
	for rk := 1; rk <= podiumPlaces; rk++ {
		group := byRank[rk]
		if len(group) == 0 || group[0].Wins <= 0 {
			continue
		}
		names := make([]string, len(group))
		for i, r := range group {
			names[i] = r.PlayerName
		}
		podium = append(podium, PodiumEntry{
			Rank:   rk,
			Name:   strings.Join(names, ", "),
			Points: group[0].Wins,
		})
	}
	return podium
}
