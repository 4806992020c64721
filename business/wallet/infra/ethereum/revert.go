package ethereum

import (
	"encoding/hex"
	"errors"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/rpc"
)

var revertHexPattern = regexp.MustCompile(`0x[0-9a-fA-F]{8,}`)

// revertReason extracts a human-readable reason from a failed eth_call.
// It prefers rpc.DataError payloads, then hex embedded in the message,
// then the message itself.
func revertReason(err error) string {
	if err == nil {
		return ""
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if data, ok := revertBytes(dataErr.ErrorData()); ok {
			if reason, uerr := abi.UnpackRevert(data); uerr == nil {
				return reason
			}
		}
	}

	for _, candidate := range revertHexPattern.FindAllString(err.Error(), -1) {
		if data, ok := parseHexBytes(candidate); ok {
			if reason, uerr := abi.UnpackRevert(data); uerr == nil {
				return reason
			}
		}
	}

	msg := err.Error()
	if i := strings.Index(msg, "execution reverted: "); i >= 0 {
		return msg[i+len("execution reverted: "):]
	}
	return msg
}

func revertBytes(value any) ([]byte, bool) {
	switch v := value.(type) {
	case string:
		return parseHexBytes(v)
	case []byte:
		if len(v) == 0 {
			return nil, false
		}
		return append([]byte(nil), v...), true
	case map[string]any:
		if raw, ok := v["data"]; ok {
			return revertBytes(raw)
		}
	}
	return nil, false
}

func parseHexBytes(raw string) ([]byte, bool) {
	value := strings.TrimSpace(strings.TrimPrefix(raw, "0x"))
	if len(value) < 8 || len(value)%2 != 0 {
		return nil, false
	}
	data, err := hex.DecodeString(value)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}
