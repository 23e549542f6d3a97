package models

// Scenario holds the murder scenario. It is generated once per session and
// never mutated afterwards.
type Scenario struct {
	VictimName        string `json:"victim_name"`
	TimeOfDeath       string `json:"time_of_death"`
	LocationFound     string `json:"location_found"`
	MurderWeapon      string `json:"murder_weapon"`
	CauseOfDeath      string `json:"cause_of_death"`
	CrimeSceneDetails string `json:"crime_scene_details"`
	Witnesses         string `json:"witnesses"`
	InitialClues      string `json:"initial_clues"`
	CastBrief         string `json:"cast_brief"`
}
