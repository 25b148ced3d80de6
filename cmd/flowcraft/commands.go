package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kalambet/flowcraft/internal/aimodel"
	"github.com/kalambet/flowcraft/internal/brief"
	"github.com/kalambet/flowcraft/internal/config"
	"github.com/kalambet/flowcraft/internal/marketing"
)

// --- channels ---

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "List channels and their publishing constraints",
	RunE: func(cmd *cobra.Command, args []string) error {
		t := newTable(os.Stdout)
		t.row("CHANNEL", "TYPE", "LIMIT", "HASHTAGS", "PEAK TIMES")
		for _, c := range marketing.AllChannels() {
			s, _ := marketing.LookupSpec(c)
			t.row(string(c), string(s.ContentType), strconv.Itoa(s.CharacterLimit),
				strconv.Itoa(s.HashtagCount), strings.Join(s.PeakTimes, " "))
		}
		return t.Flush()
	},
}

// --- flows ---

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "Compile and manage marketing flows",
}

var flowsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List flows, most recently updated first",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		channel, _ := cmd.Flags().GetString("channel")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return listFlows(cmd.Context(), client, status, channel)
	},
}

func listFlows(ctx context.Context, client *apiClient, status, channel string) error {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if channel != "" {
		q.Set("channel", channel)
	}
	path := "/flows"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := client.get(ctx, path)
	if err != nil {
		return err
	}
	var flows []marketing.Flow
	if err := decodeJSON(resp, &flows); err != nil {
		return err
	}

	if len(flows) == 0 {
		fmt.Println("No flows found.")
		return nil
	}
	t := newTable(os.Stdout)
	t.row("ID", "STATUS", "UPDATED", "CHANNELS", "NAME")
	for _, f := range flows {
		channels := make([]string, 0)
		for _, c := range f.Channels() {
			channels = append(channels, string(c))
		}
		t.row(shortID(f.ID), statusLabel(f.Status), f.UpdatedAt.Format("2006-01-02 15:04"),
			strings.Join(channels, ","), f.Name)
	}
	return t.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var flowsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a flow as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/flows/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var flow any
		if err := decodeJSON(resp, &flow); err != nil {
			return err
		}
		return printJSON(os.Stdout, flow)
	},
}

var flowsCompileCmd = &cobra.Command{
	Use:   "compile <objective>",
	Short: "Compile an objective into a draft flow",
	Long: `Compile an objective into a draft flow.

Examples:
  flowcraft flows compile "Launch the spring collection" --channels twitter,instagram,email
  flowcraft flows compile "Grow the newsletter" --channels email --brief ./brief.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		channelsStr, _ := cmd.Flags().GetString("channels")
		briefPath, _ := cmd.Flags().GetString("brief")
		constraintsStr, _ := cmd.Flags().GetString("constraints")

		req, err := buildCompileRequest(strings.Join(args, " "), channelsStr, briefPath, constraintsStr)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		printStep("Drafting flow for %d channel(s)...", len(req["channels"].([]string)))
		resp, err := client.post(cmd.Context(), "/flows", req)
		if err != nil {
			return err
		}
		var flow marketing.Flow
		if err := decodeJSON(resp, &flow); err != nil {
			var apiErr *apiError
			if errors.As(err, &apiErr) && len(apiErr.ValidChannels) > 0 {
				printWarning("valid channels: %s", strings.Join(apiErr.ValidChannels, ", "))
			}
			return err
		}
		printSuccess("Compiled flow %s with %d steps", flow.ID, len(flow.Steps))
		return printJSON(os.Stdout, flow)
	},
}

// buildCompileRequest assembles the POST /flows body. Brief constraints are
// overridden by explicit --constraints keys.
func buildCompileRequest(objective, channelsStr, briefPath, constraintsStr string) (map[string]any, error) {
	var channels []string
	for _, c := range strings.Split(channelsStr, ",") {
		if c = strings.TrimSpace(c); c != "" {
			channels = append(channels, c)
		}
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("--channels is required")
	}

	constraints := map[string]any{}
	if briefPath != "" {
		c, err := brief.Load(briefPath)
		if err != nil {
			return nil, err
		}
		for k, v := range c {
			constraints[k] = v
		}
	}
	if constraintsStr != "" {
		var extra map[string]any
		if err := json.Unmarshal([]byte(constraintsStr), &extra); err != nil {
			return nil, fmt.Errorf("invalid --constraints JSON: %w", err)
		}
		for k, v := range extra {
			constraints[k] = v
		}
	}

	req := map[string]any{
		"objective": objective,
		"channels":  channels,
	}
	if len(constraints) > 0 {
		req["constraints"] = constraints
	}
	return req, nil
}

func statusCommand(use, short string, status marketing.Status) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			resp, err := client.put(cmd.Context(), "/flows/"+url.PathEscape(args[0])+"/status", map[string]any{"status": status})
			if err != nil {
				return err
			}
			var flow marketing.Flow
			if err := decodeJSON(resp, &flow); err != nil {
				return err
			}
			printSuccess("Flow %s is %s", flow.ID, flow.Status)
			return nil
		},
	}
}

var flowsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a flow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/flows/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Deleted flow %s", args[0])
		return nil
	},
}

var flowsAnalyzeCmd = &cobra.Command{
	Use:   "analyze <id>",
	Short: "Record A/B test metrics and recompute flow analytics",
	Long: `Record A/B test metrics and recompute flow analytics.

Examples:
  flowcraft flows analyze 3f2a9c1e
  flowcraft flows analyze 3f2a9c1e --test headline --impressions 1200 --engagements 90 --conversions 7`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		test, _ := cmd.Flags().GetString("test")
		impressions, _ := cmd.Flags().GetFloat64("impressions")
		engagements, _ := cmd.Flags().GetFloat64("engagements")
		conversions, _ := cmd.Flags().GetFloat64("conversions")
		confidence, _ := cmd.Flags().GetFloat64("confidence")

		body := map[string]any{}
		if test != "" {
			body["metrics"] = map[string][]marketing.Metric{
				test: {{Impressions: impressions, Engagements: engagements, Conversions: conversions, Confidence: confidence}},
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/flows/"+url.PathEscape(args[0])+"/analytics", body)
		if err != nil {
			return err
		}
		var flow marketing.Flow
		if err := decodeJSON(resp, &flow); err != nil {
			return err
		}

		a := flow.Analytics
		printStatus("Impressions", "%.0f", a.Impressions)
		printStatus("Engagements", "%.0f", a.Engagements)
		printStatus("Conversions", "%.0f", a.Conversions)
		printStatus("ROI", "%.1f%%", a.ROI)
		return nil
	},
}

func init() {
	flowsListCmd.Flags().String("status", "", "filter by status (draft, active, paused)")
	flowsListCmd.Flags().String("channel", "", "filter by channel")

	flowsCompileCmd.Flags().String("channels", "", "comma-separated channels")
	flowsCompileCmd.Flags().String("brief", "", "text or PDF brief to derive constraints from")
	flowsCompileCmd.Flags().String("constraints", "", "constraints as a JSON object")

	flowsAnalyzeCmd.Flags().String("test", "", "A/B test to record metrics for")
	flowsAnalyzeCmd.Flags().Float64("impressions", 0, "impressions to record")
	flowsAnalyzeCmd.Flags().Float64("engagements", 0, "engagements to record")
	flowsAnalyzeCmd.Flags().Float64("conversions", 0, "conversions to record")
	flowsAnalyzeCmd.Flags().Float64("confidence", 0, "confidence of the measurement")

	flowsCmd.AddCommand(flowsListCmd, flowsShowCmd, flowsCompileCmd, flowsDeleteCmd, flowsAnalyzeCmd)
	flowsCmd.AddCommand(statusCommand("activate", "Activate a flow", marketing.StatusActive))
	flowsCmd.AddCommand(statusCommand("pause", "Pause an active flow", marketing.StatusPaused))
}

// --- generate / optimize ---

var generateCmd = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Generate content for a channel",
	Long: `Generate content for a channel.

Examples:
  flowcraft generate "Spring sale, 20% off" --type post --channel twitter
  flowcraft generate "Product teaser" --type video --channel tiktok --async`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ct, _ := cmd.Flags().GetString("type")
		channel, _ := cmd.Flags().GetString("channel")
		async, _ := cmd.Flags().GetBool("async")
		model, _ := cmd.Flags().GetString("model")

		req := map[string]any{
			"prompt":      strings.Join(args, " "),
			"contentType": ct,
			"channel":     channel,
			"async":       async,
		}
		if model != "" {
			mt, err := marketing.ModalityFor(marketing.ContentType(ct))
			if err != nil {
				return err
			}
			req["overrides"] = map[string]any{"models": modelPreference(mt, model)}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/content/generate", req)
		if err != nil {
			return err
		}
		var result map[string]any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		if async {
			printSuccess("Queued generation %v", result["id"])
			return nil
		}
		return printJSON(os.Stdout, result)
	},
}

func modelPreference(m aimodel.Modality, id string) aimodel.Preferences {
	var p aimodel.Preferences
	switch m {
	case aimodel.Text:
		p.TextModel = id
	case aimodel.Image:
		p.ImageModel = id
	case aimodel.Video:
		p.VideoModel = id
	case aimodel.Audio, aimodel.Voice:
		p.AudioModel = id
	}
	return p
}

var generationCmd = &cobra.Command{
	Use:   "generation <id>",
	Short: "Show a queued generation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/content/generations/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var g any
		if err := decodeJSON(resp, &g); err != nil {
			return err
		}
		return printJSON(os.Stdout, g)
	},
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Rewrite content using its performance metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		content, _ := cmd.Flags().GetString("content")
		file, _ := cmd.Flags().GetString("file")
		channel, _ := cmd.Flags().GetString("channel")
		perfStr, _ := cmd.Flags().GetString("performance")

		if file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			content = string(data)
		}
		if content == "" {
			return fmt.Errorf("one of --content or --file is required")
		}

		perf := map[string]float64{}
		if perfStr != "" {
			if err := json.Unmarshal([]byte(perfStr), &perf); err != nil {
				return fmt.Errorf("invalid --performance JSON: %w", err)
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/content/optimize", map[string]any{
			"content":     content,
			"channel":     channel,
			"performance": perf,
		})
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		fmt.Println(result["content"])
		return nil
	},
}

func init() {
	generateCmd.Flags().String("type", "post", "content type (post, article, image, video, story, reel, message, voice)")
	generateCmd.Flags().String("channel", "blog", "target channel")
	generateCmd.Flags().String("model", "", "preferred model id")
	generateCmd.Flags().Bool("async", false, "queue the generation and return its id")
	generateCmd.AddCommand(generationCmd)

	optimizeCmd.Flags().String("content", "", "content to optimize")
	optimizeCmd.Flags().String("file", "", "read content from a file")
	optimizeCmd.Flags().String("channel", "blog", "target channel")
	optimizeCmd.Flags().String("performance", "", `metrics as a JSON object, e.g. {"ctr":0.012}`)
}

// --- models ---

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Show, import or validate the model configuration",
}

var modelsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the model configuration (keys redacted)",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/ai-config")
		if err != nil {
			return err
		}
		var cfg aimodel.UserConfig
		if err := decodeJSON(resp, &cfg); err != nil {
			return err
		}
		return printModels(cfg)
	},
}

func printModels(cfg aimodel.UserConfig) error {
	for _, p := range aimodel.Providers() {
		key := cfg.APIKey(p)
		if key == "" {
			key = "(no key)"
		}
		fmt.Printf("%s %s\n", colorize(ansiBold, string(p)), key)
		models := cfg.Models(p)
		sort.SliceStable(models, func(i, j int) bool { return models[i].Type < models[j].Type })
		for _, m := range models {
			state := "enabled"
			if !m.IsEnabled {
				state = "disabled"
			}
			fmt.Printf("  %-12s %-6s %-9s %s\n", m.ID, m.Type, state, m.ModelID)
		}
	}
	return nil
}

var modelsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Replace the model configuration from a YAML or JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readUserConfig(args[0])
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.put(cmd.Context(), "/ai-config", cfg)
		if err != nil {
			return err
		}
		var saved aimodel.UserConfig
		if err := decodeJSON(resp, &saved); err != nil {
			return err
		}
		n := len(saved.HuggingFace.Models) + len(saved.OpenAI.Models) + len(saved.Replicate.Models)
		printSuccess("Imported %d models", n)
		return nil
	},
}

// readUserConfig parses a model configuration file. YAML is a superset of
// JSON, so both formats are accepted.
func readUserConfig(path string) (aimodel.UserConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return aimodel.UserConfig{}, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg aimodel.UserConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return aimodel.UserConfig{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

var modelsValidateCmd = &cobra.Command{
	Use:   "validate <provider> <model-id>",
	Short: "Check that a provider model exists and the API key works",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		modelType, _ := cmd.Flags().GetString("type")
		apiKey, _ := cmd.Flags().GetString("api-key")

		p := aimodel.Provider(args[0])
		if apiKey == "" {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			apiKey = providerKey(cfg, p)
		}
		if apiKey == "" {
			return fmt.Errorf("no API key for %s: pass --api-key or set providers.%s_api_key", p, p)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/ai-config/validate", map[string]any{
			"apiKey": apiKey,
			"model": aimodel.Config{
				ID:       args[1],
				Provider: p,
				ModelID:  args[1],
				Type:     aimodel.Modality(modelType),
			},
		})
		if err != nil {
			return err
		}
		var result struct {
			IsValid       bool           `json:"isValid"`
			DefaultParams map[string]any `json:"defaultParams"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("%s/%s is available", p, args[1])
		return printJSON(os.Stdout, result.DefaultParams)
	},
}

func providerKey(cfg config.Config, p aimodel.Provider) string {
	switch p {
	case aimodel.ProviderOpenAI:
		return cfg.Providers.OpenAIAPIKey
	case aimodel.ProviderHuggingFace:
		return cfg.Providers.HuggingFaceAPIKey
	case aimodel.ProviderReplicate:
		return cfg.Providers.ReplicateAPIKey
	case aimodel.ProviderElevenLabs:
		return cfg.Providers.ElevenLabsAPIKey
	}
	return ""
}

func init() {
	modelsValidateCmd.Flags().String("type", "text", "model type (text, image, video, audio)")
	modelsValidateCmd.Flags().String("api-key", "", "provider API key (default: from configuration)")
	modelsCmd.AddCommand(modelsShowCmd, modelsImportCmd, modelsValidateCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s  %s\n", colorize(ansiBold, k.Key), k.Value, colorize(ansiDim, "$"+k.EnvVar))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys:\n  " + strings.Join(config.ValidKeys(), "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s", key)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
