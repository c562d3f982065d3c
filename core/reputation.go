package core

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Candidate is an agent identity known to the external reputation source,
// independent of current connectivity.
type Candidate struct {
	Role            AgentRole `json:"role"`
	Address         string    `json:"address"`
	Endpoints       []string  `json:"endpoints,omitempty"`
	StakeAmount     int64     `json:"stakeAmount"`
	IsActive        bool      `json:"isActive"`
	RegisteredAt    int64     `json:"registeredAt"`
	ReputationScore int       `json:"reputationScore"`
}

// ReputationSource is the read-only view of the external reputation and
// identity registry. Implementations return candidates sorted or unsorted;
// the ranker applies its own stable ordering.
type ReputationSource interface {
	GetCandidates(ctx context.Context, role AgentRole, minScore int) ([]Candidate, error)
}

// HTTPReputationSource queries a registry service over HTTP. Each selection
// re-queries the source; no local caching.
type HTTPReputationSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPReputationSource builds a source against the registry's base URL.
func NewHTTPReputationSource(baseURL string) *HTTPReputationSource {
	return &HTTPReputationSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// candidateWire distinguishes an absent reputation score from zero, so a
// candidate with no reputation record defaults to the neutral midpoint.
type candidateWire struct {
	Role            AgentRole `json:"role"`
	Address         string    `json:"address"`
	Endpoints       []string  `json:"endpoints"`
	StakeAmount     int64     `json:"stakeAmount"`
	IsActive        bool      `json:"isActive"`
	RegisteredAt    int64     `json:"registeredAt"`
	ReputationScore *int      `json:"reputationScore"`
}

// GetCandidates fetches candidates of the given role with reputation at or
// above minScore.
func (s *HTTPReputationSource) GetCandidates(ctx context.Context, role AgentRole, minScore int) ([]Candidate, error) {
	if s.baseURL == "" {
		return nil, nil
	}

	u := fmt.Sprintf("%s/api/v1/agents?role=%s&minScore=%d", s.baseURL, url.QueryEscape(string(role)), minScore)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("candidate lookup failed: %s", resp.Status)
	}

	var wire []candidateWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(wire))
	for _, w := range wire {
		score := NeutralReputation
		if w.ReputationScore != nil {
			score = *w.ReputationScore
		}
		if score < minScore {
			continue
		}
		candidates = append(candidates, Candidate{
			Role:            w.Role,
			Address:         w.Address,
			Endpoints:       w.Endpoints,
			StakeAmount:     w.StakeAmount,
			IsActive:        w.IsActive,
			RegisteredAt:    w.RegisteredAt,
			ReputationScore: score,
		})
	}
	return candidates, nil
}
