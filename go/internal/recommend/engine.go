// Package recommend ranks available players for the pick on the clock.
package recommend

import (
	"fmt"
	"sort"

	"github.com/mcdev12/livedraft/go/internal/models"
)

// Input is everything the value model looks at. Rank never mutates it.
type Input struct {
	Roster       []models.PickRecord
	Drafted      map[string]struct{}
	Round        int
	Requirements models.RosterRequirements
	Pool         []models.Player
	Scoring      models.ScoringSystem
}

// Candidate is one scored, available player. Never persisted.
type Candidate struct {
	PlayerID           string          `json:"player_id"`
	FullName           string          `json:"full_name"`
	Position           models.Position `json:"position"`
	NFLTeam            string          `json:"nfl_team"`
	ByeWeek            int             `json:"bye_week,omitempty"`
	ProjectedPoints    float64         `json:"projected_points"`
	BaseValue          float64         `json:"base_value"`
	VOR                float64         `json:"vor"`
	NeedMultiplier     float64         `json:"need_multiplier"`
	ScarcityMultiplier float64         `json:"scarcity_multiplier"`
	DraftValue         float64         `json:"draft_value"`
	Tier               int             `json:"tier"`
	PositionRank       int             `json:"position_rank"`
}

// Recommendation is a ranked candidate with a short human explanation.
type Recommendation struct {
	Candidate
	Rank   int    `json:"rank"`
	Reason string `json:"reason"`
}

type Engine struct {
	tables Tables
}

func NewEngine(tables Tables) *Engine {
	return &Engine{tables: tables}
}

// Rank scores every undrafted player and returns the best topK. topK <= 0
// uses the configured default. An empty pool yields an empty list.
func (e *Engine) Rank(in Input, topK int) []Candidate {
	if topK <= 0 {
		topK = e.tables.DefaultTopK
	}

	byPos := make(map[models.Position][]models.Player)
	for _, p := range in.Pool {
		if _, taken := in.Drafted[p.ID]; taken {
			continue
		}
		byPos[p.Position] = append(byPos[p.Position], p)
	}
	if len(byPos) == 0 {
		return []Candidate{}
	}

	need := positionNeeds(in.Roster, in.Requirements)

	candidates := make([]Candidate, 0, len(in.Pool))
	for pos, players := range byPos {
		sort.SliceStable(players, func(i, j int) bool {
			vi, vj := players[i].ProjectedPoints(in.Scoring), players[j].ProjectedPoints(in.Scoring)
			if vi != vj {
				return vi > vj
			}
			return players[i].ID < players[j].ID
		})

		replacement := e.replacementLevel(pos, players, in.Scoring)
		needMult := e.needMultiplier(pos, need[pos], in.Round)
		scarcity := e.scarcityMultiplier(pos, in.Round)

		for i, p := range players {
			base := p.ProjectedPoints(in.Scoring)
			vor := max(0, base-replacement)
			candidates = append(candidates, Candidate{
				PlayerID:           p.ID,
				FullName:           p.FullName,
				Position:           pos,
				NFLTeam:            p.NFLTeam,
				ByeWeek:            p.ByeWeek,
				ProjectedPoints:    base,
				BaseValue:          base,
				VOR:                vor,
				NeedMultiplier:     needMult,
				ScarcityMultiplier: scarcity,
				DraftValue:         (base + vor) * needMult * scarcity,
				Tier:               e.tier(pos, i+1),
				PositionRank:       i + 1,
			})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.DraftValue != b.DraftValue {
			return a.DraftValue > b.DraftValue
		}
		if a.PositionRank != b.PositionRank {
			return a.PositionRank < b.PositionRank
		}
		if a.ProjectedPoints != b.ProjectedPoints {
			return a.ProjectedPoints > b.ProjectedPoints
		}
		return a.PlayerID < b.PlayerID
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}

// Recommend ranks the pool for the session's current round and roster.
func (e *Engine) Recommend(s *models.DraftSession, league *models.League, pool []models.Player, topK int) []Recommendation {
	round := s.CurrentRound
	if round < 1 {
		round = 1
	}
	ranked := e.Rank(Input{
		Roster:       s.UserRoster,
		Drafted:      s.DraftedPlayerIDs(),
		Round:        round,
		Requirements: league.Roster,
		Pool:         pool,
		Scoring:      league.Scoring,
	}, topK)

	need := positionNeeds(s.UserRoster, league.Roster)
	recs := make([]Recommendation, 0, len(ranked))
	for i, c := range ranked {
		recs = append(recs, Recommendation{
			Candidate: c,
			Rank:      i + 1,
			Reason:    reason(c, need[c.Position]),
		})
	}
	return recs
}

// positionNeeds counts open starting slots per position. Open FLEX slots
// raise RB and WR need while skill players are short.
func positionNeeds(roster []models.PickRecord, req models.RosterRequirements) map[models.Position]int {
	counts := make(map[models.Position]int)
	for _, p := range roster {
		counts[p.Position]++
	}

	need := make(map[models.Position]int)
	for _, pos := range []models.Position{
		models.PositionQB, models.PositionRB, models.PositionWR,
		models.PositionTE, models.PositionK, models.PositionDEF,
	} {
		need[pos] = max(0, req.Starters(pos)-counts[pos])
	}

	skill := counts[models.PositionRB] + counts[models.PositionWR] + counts[models.PositionTE]
	if skill < req.RB+req.WR+req.TE+req.Flex {
		need[models.PositionRB]++
		need[models.PositionWR]++
	}
	return need
}

func (e *Engine) needMultiplier(pos models.Position, need, round int) float64 {
	n := e.tables.Need
	var m float64
	switch {
	case need <= 0:
		m = n.Filled
	case need >= 2:
		m = n.Urgent
	default:
		m = n.Normal
	}
	if round > n.LateRound {
		switch pos {
		case models.PositionK, models.PositionDEF:
			m *= n.LateKickDEF
		case models.PositionQB:
			m *= n.LateNonFlex
		}
	}
	return m
}

// replacementLevel is the value of the player at the position's replacement
// rank among those still available, or 0 when the pool is thinner than that.
func (e *Engine) replacementLevel(pos models.Position, sorted []models.Player, scoring models.ScoringSystem) float64 {
	rank, ok := e.tables.ReplacementRanks[pos]
	if !ok {
		rank = e.tables.DefaultReplacementRank
	}
	if rank < 1 || len(sorted) < rank {
		return 0
	}
	return sorted[rank-1].ProjectedPoints(scoring)
}

func (e *Engine) scarcityMultiplier(pos models.Position, round int) float64 {
	bands, ok := e.tables.Scarcity[pos]
	if !ok || len(bands) != 3 {
		return 1.0
	}
	switch {
	case round <= earlyBandEnd:
		return bands[0]
	case round <= midBandEnd:
		return bands[1]
	default:
		return bands[2]
	}
}

// tier buckets a 1-based position rank. Ranks past the table fall into one
// remainder tier.
func (e *Engine) tier(pos models.Position, rank int) int {
	sizes := e.tables.TierSizes[pos]
	seen := 0
	for i, size := range sizes {
		seen += size
		if rank <= seen {
			return i + 1
		}
	}
	return len(sizes) + 1
}

func reason(c Candidate, need int) string {
	switch {
	case need >= 2:
		return fmt.Sprintf("fills a pressing %s need", c.Position)
	case need == 1:
		return fmt.Sprintf("fills an open %s slot", c.Position)
	case c.Tier == 1:
		return fmt.Sprintf("top-tier %s still available", c.Position)
	case c.VOR > 0:
		return fmt.Sprintf("%.1f points over replacement", c.VOR)
	default:
		return "best value available"
	}
}
