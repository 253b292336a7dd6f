package protocol

// Plain data records crossing the session facade. They never alias live
// station state.

type Resources struct {
	Air   float64 `json:"air"`
	Power float64 `json:"power"`
	Heat  float64 `json:"heat"`
	Water float64 `json:"water"`
	Food  float64 `json:"food"`
	Fuel  float64 `json:"fuel"`
}

type Storage struct {
	Food      float64 `json:"food"`
	Water     float64 `json:"water"`
	Fuel      float64 `json:"fuel"`
	Materials float64 `json:"materials"`
}

type StationStats struct {
	Production     Resources `json:"production"`
	Consumption    Resources `json:"consumption"`
	Stored         Storage   `json:"stored"`
	StorageSpace   Storage   `json:"storage_space"`
	Volume         float64   `json:"volume"`
	OccupiedVolume float64   `json:"occupied_volume"`
	Efficiency     float64   `json:"efficiency"`
}

type CrewMember struct {
	ID      uint32 `json:"id"`
	Name    string `json:"name"`
	State   string `json:"state"`
	Subject uint32 `json:"subject"`
}

type Extension struct {
	ID            uint32  `json:"id"`
	Entity        uint32  `json:"entity"`
	Type          string  `json:"type"`
	Builder       int64   `json:"builder"` // crew id, -1 if nobody is building it
	BuildProgress float64 `json:"build_progress"`
}

type Module struct {
	ID            uint32      `json:"id"`
	Entity        uint32      `json:"entity"`
	BuildProgress float64     `json:"build_progress"`
	Extensions    []Extension `json:"extensions"`
}

type Flow struct {
	Production  float64 `json:"production"`
	Consumption float64 `json:"consumption"`
}

type Blueprint struct {
	ID           string  `json:"id"`
	Label        string  `json:"label"`
	Description  string  `json:"description"`
	Pinned       bool    `json:"pinned"`
	Power        Flow    `json:"power"`
	Heat         Flow    `json:"heat"`
	Water        Flow    `json:"water"`
	Food         Flow    `json:"food"`
	Air          Flow    `json:"air"`
	Volume       float64 `json:"volume"`
	MaterialCost float64 `json:"material_cost"`
	BuildTime    float64 `json:"build_time"`
}
