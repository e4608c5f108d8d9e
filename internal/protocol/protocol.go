package protocol

import "encoding/json"

const Version = "0.3"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeStatus  = "STATUS"
	TypeCommand = "COMMAND"
	TypeResult  = "RESULT"
)

// Command verbs.
const (
	CmdPlaceSource  = "PLACE_SOURCE"
	CmdPlaceHealer  = "PLACE_HEALER"
	CmdRemoveSource = "REMOVE_SOURCE"
	CmdSpawnRift    = "SPAWN_RIFT"
	CmdPause        = "PAUSE"
	CmdResume       = "RESUME"
	CmdAdvanceTime  = "ADVANCE_TIME"
	CmdSave         = "SAVE"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

var knownCommands = map[string]struct{}{
	CmdPlaceSource:  {},
	CmdPlaceHealer:  {},
	CmdRemoveSource: {},
	CmdSpawnRift:    {},
	CmdPause:        {},
	CmdResume:       {},
	CmdAdvanceTime:  {},
	CmdSave:         {},
}

func IsKnownCommand(cmd string) bool {
	_, ok := knownCommands[cmd]
	return ok
}
