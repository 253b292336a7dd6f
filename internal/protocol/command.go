package protocol

// Command names accepted in CMD messages.
const (
	CmdGetStats      = "get_stats"
	CmdGetCrew       = "get_crew"
	CmdGetModule     = "get_module"
	CmdGetBlueprints = "get_blueprints"
	CmdAssignBuilder = "assign_builder"
	CmdGUIEvent      = "gui_event"
	CmdSignal        = "signal"
)

// Commands lists every command name in a stable order.
var Commands = []string{
	CmdGetStats,
	CmdGetCrew,
	CmdGetModule,
	CmdGetBlueprints,
	CmdAssignBuilder,
	CmdGUIEvent,
	CmdSignal,
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	StationID       string `json:"station_id"`
	TickRateHz      int    `json:"tick_rate_hz"`
	CatalogDigest   string `json:"catalog_digest"`
}

// CMD (client -> server)
type CmdMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Cmd             string `json:"cmd"`

	Entity  uint32 `json:"entity,omitempty"`  // get_module
	Subject uint32 `json:"subject,omitempty"` // assign_builder
	Crew    uint32 `json:"crew,omitempty"`    // assign_builder
	Event   string `json:"event,omitempty"`   // gui_event
	Signal  string `json:"signal,omitempty"`  // signal
}

// RESULT (server -> client)
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Cmd             string `json:"cmd,omitempty"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	Suggestion      string `json:"suggestion,omitempty"`

	Stats      *StationStats `json:"stats,omitempty"`
	Crew       []CrewMember  `json:"crew,omitempty"`
	Module     *Module       `json:"module,omitempty"`
	Blueprints []Blueprint   `json:"blueprints,omitempty"`
}

func NewResult(reqID, cmd string) ResultMsg {
	return ResultMsg{Type: TypeResult, ProtocolVersion: Version, ReqID: reqID, Cmd: cmd, OK: true}
}

func ErrorResult(reqID, cmd, code, message string) ResultMsg {
	return ResultMsg{
		Type:            TypeResult,
		ProtocolVersion: Version,
		ReqID:           reqID,
		Cmd:             cmd,
		Code:            code,
		Message:         message,
	}
}
