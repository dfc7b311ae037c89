package functions

import "google.golang.org/genai"

// GetBridgeInfoDocsFunctionDeclaration returns the function declaration
// the Gemini Live demo assistant calls to answer questions about the
// voice bridge it is running inside of.
func GetBridgeInfoDocsFunctionDeclaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        "GetBridgeInfoDocs",
		Description: "Get information about the voice bridge this assistant is running inside of",
	}
}

var bridgeDocs = `
This voice bridge exposes two realtime upstream voice AI providers over
WebSocket:

- Doubao (ByteDance realtime dialogue): a stateful bridge that manages
  a connection and session lifecycle, translates client audio/text
  into the upstream's binary frame protocol, and streams back ASR and
  TTS events as JSON and raw audio.
- GLM pass-through: a thin proxy that forwards every client frame to
  the GLM realtime endpoint verbatim, attaching the API credential the
  browser cannot set itself.

A session manager enforces a maximum concurrent session count, tracks
per-session activity, and force-closes sessions idle past a configured
timeout.
`

// GetBridgeInfoDocs returns a description of the bridge for the demo
// assistant to read back to the caller.
func GetBridgeInfoDocs() string {
	return bridgeDocs
}
