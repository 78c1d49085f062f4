package answer

import (
	"encoding/json"

	"github.com/renqiu/gohomework/oracle"
)

// wireReply mirrors the JSON envelope the answer prompt demands.
// Models sometimes send ids as bare numbers, so both id fields decode
// leniently.
type wireReply struct {
	ProblemID   oracle.FlexString `json:"problem_id"`
	ProblemText string            `json:"problem_text"`
	Answers     []wireAnswer      `json:"answers"`
}

type wireAnswer struct {
	SubID  oracle.FlexString `json:"sub_id"`
	Answer string            `json:"answer"`
	Reason string            `json:"reason"`
}

func parseReply(reply string) (*wireReply, error) {
	raw, err := oracle.ExtractObject(reply)
	if err != nil {
		return nil, err
	}
	var wr wireReply
	if err := json.Unmarshal(raw, &wr); err != nil {
		return nil, err
	}
	return &wr, nil
}
