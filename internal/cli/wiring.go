package cli

import (
	"fmt"

	"github.com/ppiankov/repotriage/internal/ai"
	"github.com/ppiankov/repotriage/internal/config"
	"github.com/ppiankov/repotriage/internal/github"
	"github.com/ppiankov/repotriage/internal/history"
	"github.com/ppiankov/repotriage/internal/trello"
	"github.com/ppiankov/repotriage/internal/workflow"
)

// deps is everything a command can wire from settings. Optional collaborators
// stay nil when not configured.
type deps struct {
	settings *config.Settings
	gh       *github.Client
	board    *trello.Client
	reviewer *ai.Analyzer
	store    *history.Store
}

// loadDeps reads the config file and constructs the configured collaborators.
func loadDeps() (*deps, error) {
	settings, err := config.LoadSettings(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	store, err := history.Open(settings.HistoryPath)
	if err != nil {
		return nil, err
	}

	return &deps{
		settings: settings,
		gh:       github.NewClient(settings.GitHubToken),
		board:    trello.NewClient(settings.Trello.APIKey, settings.Trello.Token, settings.Trello.BoardID),
		reviewer: ai.NewAnalyzerFromKeys(settings.AI.OpenAIKey, settings.AI.AnthropicKey),
		store:    store,
	}, nil
}

func (d *deps) close() {
	_ = d.store.Close()
}

// runner assembles a workflow runner from the configured collaborators.
// withBoard and withAI let commands opt out of the optional stages.
func (d *deps) runner(opts workflow.Options, withBoard, withAI bool) (*workflow.Runner, error) {
	if d.gh == nil {
		return nil, fmt.Errorf("github token is required (set github_token or GITHUB_TOKEN)")
	}
	if opts.MaxFiles == 0 {
		opts.MaxFiles = d.settings.MaxFiles
	}

	var mapper *trello.Mapper
	if withBoard && d.board != nil {
		mapper = trello.NewMapper(d.board)
	}

	var reviewer workflow.Reviewer
	if withAI {
		reviewer = d.reviewer
	}

	return workflow.NewRunner(d.gh, mapper, reviewer, d.store, opts), nil
}
