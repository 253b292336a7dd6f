package protocol

import (
	"encoding/json"
	"fmt"
)

const Version = "1.0"

const (
	TypeWelcome = "WELCOME"
	TypeCmd     = "CMD"
	TypeResult  = "RESULT"
)

// DecodeCmd parses one CMD frame. doc is the generic form handed to the
// schema validator; cmd is best effort and may be partially filled when the
// frame does not match CmdMsg.
func DecodeCmd(b []byte) (doc any, cmd CmdMsg, err error) {
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, cmd, fmt.Errorf("decode cmd: %w", err)
	}
	_ = json.Unmarshal(b, &cmd)
	return doc, cmd, nil
}

// Compatible reports whether a client speaking v can be served.
func Compatible(v string) bool { return v == Version }
