// Package llamacloud is a minimal client for the LlamaCloud retrieval
// API, covering only the pipeline retrieve endpoint used to query the
// résumé index.
package llamacloud

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/ovoronin/resume-ranker/internal/ai"
)

const (
	apiURL          = "https://api.cloud.llamaindex.ai"
	retrievePath    = "/api/v1/pipelines/%s/retrieve"
	contentType     = "application/json"
	contentEncoding = "gzip, deflate, br"

	// alpha 1.0 restricts retrieval to dense vector search.
	denseAlpha = 1.0
)

type Client struct {
	token      string
	pipelineID string
	logger     *zap.Logger
	HTTPClient *http.Client
	APIURL     string
}

func New(token, pipelineID string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		token:      token,
		pipelineID: pipelineID,
		APIURL:     apiURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// RetrievalNode is one scored chunk returned by the retrieval API.
type RetrievalNode struct {
	ID       string
	Score    float64
	Text     string
	Metadata map[string]any
}

type retrieveRequest struct {
	Query               string  `json:"query"`
	DenseSimilarityTopK int     `json:"dense_similarity_top_k"`
	Alpha               float64 `json:"alpha"`
	EnableReranking     bool    `json:"enable_reranking"`
}

type retrieveResponse struct {
	RetrievalNodes []rawNode `json:"retrieval_nodes"`
}

type rawNode struct {
	Score float64        `json:"score"`
	Node  map[string]any `json:"node"`
}

// Retrieve queries the pipeline index and returns the scored nodes.
func (c *Client) Retrieve(ctx context.Context, query string, topK int, enableReranking bool) ([]RetrievalNode, error) {
	payload := retrieveRequest{
		Query:               query,
		DenseSimilarityTopK: topK,
		Alpha:               denseAlpha,
		EnableReranking:     enableReranking,
	}

	var response retrieveResponse
	url := fmt.Sprintf("%s"+retrievePath, c.APIURL, c.pipelineID)
	if err := c.postJSON(ctx, url, payload, &response); err != nil {
		return nil, err
	}

	nodes := make([]RetrievalNode, 0, len(response.RetrievalNodes))
	for _, raw := range response.RetrievalNodes {
		node, err := decodeNode(raw)
		if err != nil {
			c.logger.Warn("skipping undecodable retrieval node", zap.Error(err))
			continue
		}
		nodes = append(nodes, node)
	}

	c.logger.Debug("retrieved nodes from llamacloud",
		zap.Int("count", len(nodes)),
		zap.Int("top_k", topK),
		zap.Bool("reranking", enableReranking),
	)

	return nodes, nil
}

// nodePayload covers the field name variants the API uses for node
// identifiers, text and metadata.
type nodePayload struct {
	ID        string         `mapstructure:"id_"`
	NodeID    string         `mapstructure:"node_id"`
	Text      string         `mapstructure:"text"`
	Content   string         `mapstructure:"content"`
	Metadata  map[string]any `mapstructure:"metadata"`
	ExtraInfo map[string]any `mapstructure:"extra_info"`
}

func decodeNode(raw rawNode) (RetrievalNode, error) {
	var payload nodePayload
	if err := mapstructure.Decode(raw.Node, &payload); err != nil {
		return RetrievalNode{}, fmt.Errorf("decode node payload: %w", err)
	}

	id := payload.ID
	if id == "" {
		id = payload.NodeID
	}
	if id == "" {
		return RetrievalNode{}, errors.New("node has no identifier")
	}

	text := payload.Text
	if text == "" {
		text = payload.Content
	}

	metadata := payload.Metadata
	if metadata == nil {
		metadata = payload.ExtraInfo
	}

	return RetrievalNode{
		ID:       id,
		Score:    raw.Score,
		Text:     text,
		Metadata: metadata,
	}, nil
}

func (c *Client) postJSON(ctx context.Context, url string, payload, target any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)

	c.logger.Debug("make request", zap.String("url", req.URL.String()))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ai.ErrTimeout, err)
		}
		return fmt.Errorf("%w: %s", ai.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: bad status: %s", ai.ErrRateLimited, resp.Status)
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: bad status: %s", ai.ErrUnavailable, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	if target == nil {
		return nil
	}

	return json.Unmarshal(data, target)
}
