package trello

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.trello.com/1"

// Client is a minimal Trello REST client bound to one board. Lists and labels
// are memoized for the lifetime of the client and invalidated after any
// creation. A nil Client is a valid "not configured" state.
type Client struct {
	baseURL    string
	apiKey     string
	token      string
	boardID    string
	httpClient *http.Client

	listsCache  []List
	labelsCache []Label
}

// List is a queue on the board.
type List struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Closed bool   `json:"closed"`
}

// Label is a board label.
type Label struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Card is a created board card.
type Card struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Desc     string   `json:"desc"`
	URL      string   `json:"url"`
	ListName string   `json:"list_name"`
	Labels   []string `json:"labels"`
}

var boardURLRe = regexp.MustCompile(`/b/([a-zA-Z0-9]+)`)

// ExtractBoardID accepts a bare board ID or a board URL like
// https://trello.com/b/Diz3GQos/my-board and returns the ID.
func ExtractBoardID(ref string) string {
	if strings.HasPrefix(ref, "http") {
		if m := boardURLRe.FindStringSubmatch(ref); m != nil {
			return m[1]
		}
	}
	return ref
}

// NewClient creates a Trello client. Returns nil when credentials are missing.
func NewClient(apiKey, token, boardRef string) *Client {
	if apiKey == "" || token == "" || boardRef == "" {
		return nil
	}
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		token:   token,
		boardID: ExtractBoardID(boardRef),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewClientWithBaseURL creates a client against a non-default endpoint. Used
// by tests.
func NewClientWithBaseURL(apiKey, token, boardRef, baseURL string) *Client {
	c := NewClient(apiKey, token, boardRef)
	if c != nil {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
	return c
}

// Lists returns all lists on the board, memoized.
func (c *Client) Lists(ctx context.Context) ([]List, error) {
	if c.listsCache != nil {
		return c.listsCache, nil
	}
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/boards/%s/lists", c.boardID), nil)
	if err != nil {
		return nil, err
	}
	var lists []List
	if err := json.Unmarshal(body, &lists); err != nil {
		return nil, fmt.Errorf("parse lists: %w", err)
	}
	c.listsCache = lists
	return lists, nil
}

// Labels returns all labels on the board, memoized.
func (c *Client) Labels(ctx context.Context) ([]Label, error) {
	if c.labelsCache != nil {
		return c.labelsCache, nil
	}
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/boards/%s/labels", c.boardID), nil)
	if err != nil {
		return nil, err
	}
	var labels []Label
	if err := json.Unmarshal(body, &labels); err != nil {
		return nil, fmt.Errorf("parse labels: %w", err)
	}
	c.labelsCache = labels
	return labels, nil
}

// CreateList creates a new list on the board and invalidates the list cache.
func (c *Client) CreateList(ctx context.Context, name string) (*List, error) {
	body, err := c.do(ctx, http.MethodPost, "/lists", url.Values{
		"name":    {name},
		"idBoard": {c.boardID},
	})
	if err != nil {
		return nil, err
	}
	var list List
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("parse created list: %w", err)
	}
	c.listsCache = nil
	return &list, nil
}

// CreateLabel creates a new label and invalidates the label cache.
func (c *Client) CreateLabel(ctx context.Context, name, color string) (*Label, error) {
	body, err := c.do(ctx, http.MethodPost, "/labels", url.Values{
		"name":    {name},
		"color":   {color},
		"idBoard": {c.boardID},
	})
	if err != nil {
		return nil, err
	}
	var label Label
	if err := json.Unmarshal(body, &label); err != nil {
		return nil, fmt.Errorf("parse created label: %w", err)
	}
	c.labelsCache = nil
	return &label, nil
}

// GetOrCreateLabel resolves a label ID by case-insensitive name, creating the
// label with the given color when it does not exist.
func (c *Client) GetOrCreateLabel(ctx context.Context, name, color string) (string, error) {
	labels, err := c.Labels(ctx)
	if err != nil {
		return "", err
	}
	for _, l := range labels {
		if strings.EqualFold(l.Name, name) {
			return l.ID, nil
		}
	}
	created, err := c.CreateLabel(ctx, name, color)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

// listIDByName resolves a list ID by case-insensitive name.
func (c *Client) listIDByName(ctx context.Context, name string) (string, error) {
	lists, err := c.Lists(ctx)
	if err != nil {
		return "", err
	}
	for _, l := range lists {
		if strings.EqualFold(l.Name, name) {
			return l.ID, nil
		}
	}
	return "", nil
}

// CardParams describes a card to create.
type CardParams struct {
	Title       string
	Description string
	ListName    string
	Labels      []string
	LabelColors map[string]string // label name → color for on-demand creation
}

// CreateCard creates a card in the named list. When the list is missing the
// first available list is used as a fallback; with no lists at all the card
// is not created and an error is returned. Label attachment is best effort.
func (c *Client) CreateCard(ctx context.Context, p CardParams) (*Card, error) {
	listID, err := c.listIDByName(ctx, p.ListName)
	if err != nil {
		return nil, err
	}
	if listID == "" {
		lists, err := c.Lists(ctx)
		if err != nil {
			return nil, err
		}
		if len(lists) == 0 {
			return nil, fmt.Errorf("board %s has no lists", c.boardID)
		}
		listID = lists[0].ID
	}

	var labelIDs []string
	for _, name := range p.Labels {
		color := p.LabelColors[name]
		if color == "" {
			color = "black"
		}
		id, err := c.GetOrCreateLabel(ctx, name, color)
		if err != nil || id == "" {
			continue
		}
		labelIDs = append(labelIDs, id)
	}

	values := url.Values{
		"idList": {listID},
		"name":   {p.Title},
		"desc":   {p.Description},
	}
	if len(labelIDs) > 0 {
		values.Set("idLabels", strings.Join(labelIDs, ","))
	}

	body, err := c.do(ctx, http.MethodPost, "/cards", values)
	if err != nil {
		return nil, err
	}
	var card Card
	if err := json.Unmarshal(body, &card); err != nil {
		return nil, fmt.Errorf("parse created card: %w", err)
	}
	card.ListName = p.ListName
	card.Labels = p.Labels
	return &card, nil
}

func (c *Client) do(ctx context.Context, method, path string, values url.Values) ([]byte, error) {
	if values == nil {
		values = url.Values{}
	}
	values.Set("key", c.apiKey)
	values.Set("token", c.token)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+values.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("trello %s %s failed (%d): %s", method, path, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	return payload, nil
}
