package models

// Player represents a draftable NFL player with season projections.
type Player struct {
	ID       string   `json:"id"` // upstream player id, matches PickRecord.PlayerID
	FullName string   `json:"full_name"`
	Position Position `json:"position"`
	NFLTeam  string   `json:"nfl_team"`
	ByeWeek  int      `json:"bye_week,omitempty"`
	ADP      float64  `json:"adp,omitempty"`

	Projections map[ScoringSystem]float64 `json:"projections"`
}

// ProjectedPoints returns the projection for a scoring system, falling back to standard.
func (p Player) ProjectedPoints(scoring ScoringSystem) float64 {
	if v, ok := p.Projections[scoring]; ok {
		return v
	}
	return p.Projections[ScoringStandard]
}
