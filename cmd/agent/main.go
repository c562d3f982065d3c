// Reference agent for local runs: connects to the coordinator, registers
// under a role from the environment and answers dispatched tasks with
// simulated results. Real scout/verifier/synthesizer agents are external
// processes; this binary exists for demos and end-to-end smoke tests.
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"swarm-coordinator/core"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(log.Ltime | log.Lshortfile)

	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	coordinatorURL := envOr("COORDINATOR_WS_URL", "ws://localhost:8080/ws")
	role := core.AgentRole(envOr("AGENT_ROLE", string(core.RoleScout)))
	agentID := os.Getenv("AGENT_ID")
	address := os.Getenv("AGENT_ADDRESS")

	if !core.ValidRole(role) {
		log.Fatalf("Invalid AGENT_ROLE %q (want scout, verifier or synthesizer)", role)
	}

	conn, _, err := websocket.DefaultDialer.Dial(coordinatorURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect to coordinator at %s: %v", coordinatorURL, err)
	}
	defer conn.Close()

	register := core.RegisterMessage{
		Type:         "register",
		Role:         role,
		AgentID:      agentID,
		Address:      address,
		Capabilities: []string{"simulated"},
	}
	if err := conn.WriteJSON(register); err != nil {
		log.Fatalf("Failed to register: %v", err)
	}

	log.Printf("[Agent] Connected to %s as %s", coordinatorURL, role)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Fatalf("Connection closed: %v", err)
		}

		var msg map[string]json.RawMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("[Agent] Invalid JSON: %v", err)
			continue
		}
		var msgType string
		json.Unmarshal(msg["type"], &msgType)

		switch msgType {
		case "registered":
			json.Unmarshal(msg["agentId"], &agentID)
			log.Printf("[Agent] Registered as %s", agentID)

		case "query_quest":
			var task core.QueryQuestTask
			json.Unmarshal(raw, &task)
			reply(conn, scoutResult(task, agentID))

		case "verify_task":
			var task core.VerifyTask
			json.Unmarshal(raw, &task)
			reply(conn, verifyResult(task, agentID))

		case "synthesize_task":
			var task core.SynthesizeTask
			json.Unmarshal(raw, &task)
			reply(conn, synthesisResult(task, agentID))

		default:
			log.Printf("[Agent] Ignoring message type %q", msgType)
		}
	}
}

func reply(conn *websocket.Conn, msg core.TaskResultMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[Agent] Failed to send result for quest %s: %v", msg.QuestID, err)
		return
	}
	log.Printf("[Agent] Sent %s result for quest %s", msg.Status, msg.QuestID)
}

func scoutResult(task core.QueryQuestTask, agentID string) core.TaskResultMessage {
	sources := task.Sources
	if len(sources) == 0 {
		sources = []string{"simulated://source"}
	}
	var chunks []core.ResultChunk
	var hashes []string
	for _, src := range sources {
		data, _ := json.Marshal(map[string]string{
			"source":    src,
			"objective": task.Objective,
			"body":      "simulated fetch result",
		})
		hash := sha256Hex(data)
		chunks = append(chunks, core.ResultChunk{
			Source:    src,
			Data:      data,
			Hash:      hash,
			Timestamp: time.Now().Unix(),
		})
		hashes = append(hashes, hash)
	}
	return core.TaskResultMessage{
		Type:       "task_result",
		QuestID:    task.QuestID,
		AgentID:    agentID,
		Status:     core.ResultComplete,
		Results:    chunks,
		DataHashes: hashes,
	}
}

func verifyResult(task core.VerifyTask, agentID string) core.TaskResultMessage {
	verified := 0
	for _, chunk := range task.Data {
		if chunk.Hash != "" && chunk.Hash == sha256Hex(chunk.Data) {
			verified++
		}
	}
	status := core.ResultVerified
	if len(task.Data) > 0 && verified < len(task.Data) {
		status = core.ResultPartial
	}
	attestation, _ := json.Marshal(map[string]interface{}{
		"dataHash":        sha256Hex([]byte(fmt.Sprintf("%v", task.ExpectedHashes))),
		"timestamp":       time.Now().Unix(),
		"validatorPubkey": agentID,
		"signature":       "simulated",
		"confidenceScore": 100 * max(verified, 1) / max(len(task.Data), 1),
	})
	return core.TaskResultMessage{
		Type:        "task_result",
		QuestID:     task.QuestID,
		AgentID:     agentID,
		Status:      status,
		Attestation: attestation,
	}
}

func synthesisResult(task core.SynthesizeTask, agentID string) core.TaskResultMessage {
	var hashes []string
	for _, chunk := range task.VerifiedData {
		if chunk.Hash != "" {
			hashes = append(hashes, chunk.Hash)
		}
	}
	root := sha256Hex([]byte(fmt.Sprintf("%v", hashes)))
	artifact, _ := json.Marshal(map[string]interface{}{
		"merkleRoot":  root,
		"metadataURI": "ipfs://Qm" + root[:44],
		"createdAt":   time.Now().Unix(),
	})
	return core.TaskResultMessage{
		Type:     "task_result",
		QuestID:  task.QuestID,
		AgentID:  agentID,
		Status:   core.ResultComplete,
		Artifact: artifact,
	}
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
