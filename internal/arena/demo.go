package arena

// DemoRoster is a small cast used by development runs on the memory store.
func DemoRoster() []Actor {
	return []Actor{
		{ID: "ada", Name: "Ada", Role: "SCHOLAR", Condition: 70, Active: true,
			Stats:       Stats{Energy: 65, Mood: 60, Stress: 25, Curiosity: 80},
			Preferences: []Mode{ModeMathRace, ModeMemoryChain, ModePromptBattle},
			Directives:  []string{"study the old puzzles and stay focused"}},
		{ID: "bram", Name: "Bram", Role: "MERCHANT", Condition: 55, Active: true,
			Stats:      Stats{Energy: 50, Mood: 55, Stress: 40, Curiosity: 45},
			Directives: []string{"be bold, take every risk"}},
		{ID: "cleo", Name: "Cleo", Role: "JUDGE", Condition: 80, Active: true, Human: true,
			Stats:      Stats{Energy: 60, Mood: 70, Stress: 20, Curiosity: 55},
			Directives: []string{"stay calm and read the case carefully"}},
		{ID: "dax", Name: "Dax", Role: "ATHLETE", Condition: 65, Active: true,
			Stats:       Stats{Energy: 85, Mood: 50, Stress: 35, Curiosity: 30},
			Preferences: []Mode{ModeReflexDuel, ModeAuctionDuel, ModeMathRace}},
		{ID: "eve", Name: "Eve", Role: "ARTIST", Condition: 60, Active: true,
			Stats:      Stats{Energy: 55, Mood: 75, Stress: 30, Curiosity: 70},
			Directives: []string{"practice daily, keep a routine"}},
		{ID: "finn", Name: "Finn", Role: "GUARD", Condition: 50, Active: true,
			Stats: Stats{Energy: 70, Mood: 45, Stress: 50, Curiosity: 40}},
	}
}

// SeedDemo loads DemoRoster into s with a starting balance each.
func SeedDemo(s *MemoryStore, balance int64) {
	for _, a := range DemoRoster() {
		s.PutActor(a)
		s.SetBalance(a.ID, balance)
	}
	s.SetRelationship(Relationship{ActorID: "bram", TargetID: "ada", Rivalry: 0.45, Jealousy: 0.2})
	s.SetRelationship(Relationship{ActorID: "dax", TargetID: "finn", Rivalry: 0.3})
}
