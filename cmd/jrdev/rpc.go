package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// rpcEnvelope is the wire shape of a JSON-RPC 2.0 exchange with the gateway.
type rpcEnvelope struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcReply struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// callTool invokes a tools/call method on the server and returns the _meta
// payload of the tool result.
func callTool(name string, arguments any) (map[string]json.RawMessage, error) {
	body, err := json.Marshal(rpcEnvelope{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params: map[string]any{
			"name":      name,
			"arguments": arguments,
		},
	})
	if err != nil {
		return nil, err
	}

	resp, err := http.Post(serverURL+"/mcp", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("connecting to server: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var reply rpcReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if reply.Error != nil {
		return nil, fmt.Errorf("server error (%d): %s", reply.Error.Code, reply.Error.Message)
	}

	var result struct {
		Meta map[string]json.RawMessage `json:"_meta"`
	}
	if err := json.Unmarshal(reply.Result, &result); err != nil {
		return nil, fmt.Errorf("parsing tool result: %w", err)
	}
	return result.Meta, nil
}
