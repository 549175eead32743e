package importcli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/raidstats/internal/domain/model"
	"github.com/okian/raidstats/internal/domain/types"
	"github.com/okian/raidstats/pkg/logger"
)

// ErrServer reports a non-2xx answer from raidstats.
var ErrServer = errors.New("server error")

type client struct {
	base string
	http *http.Client
}

func newClient(opts *rootOptions) *client {
	return &client{
		base: strings.TrimRight(opts.server, "/"),
		http: &http.Client{Timeout: opts.timeout},
	}
}

func (c *client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger.Get().Debug(ctx, "calling raidstats", logger.String("method", method), logger.String("path", path))
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		var e types.Error
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Message == "" {
			return fmt.Errorf("%w: %s %s: %s", ErrServer, method, path, resp.Status)
		}
		return fmt.Errorf("%w: %s %s: %d %s", ErrServer, method, path, resp.StatusCode, e.Message)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type submitOptions struct {
	month     string
	overrides map[string]string
	accept    bool
}

func newSubmitCommand(root *rootOptions) *cobra.Command {
	opts := &submitOptions{}
	cmd := &cobra.Command{
		Use:   "submit [file]",
		Short: "Analyze a pasted log on the server and optionally accept its ok rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read log: %w", err)
			}
			c := newClient(root)
			var res types.AnalysisResult
			err = c.do(cmd.Context(), http.MethodPost, "/raids/analyze", types.AnalyzeRequest{
				Month:     opts.month,
				Text:      string(text),
				Overrides: opts.overrides,
			}, &res)
			if err != nil {
				return err
			}
			if err := renderAnalysis(cmd.OutOrStdout(), res, root.json); err != nil {
				return err
			}
			if !opts.accept {
				return nil
			}
			req := acceptRequest(res)
			if len(req.Raids) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "nothing to accept")
				return nil
			}
			var ack types.AcceptResponse
			if err := c.do(cmd.Context(), http.MethodPost, "/raids/accept", req, &ack); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "accepted %d raids into %s\n", ack.Accepted, res.Month)
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.month, "month", "m", "", "month to analyze (YYYY-MM, default current)")
	cmd.Flags().StringToStringVar(&opts.overrides, "override", nil, "bind a handle to a member id (handle=id)")
	cmd.Flags().BoolVar(&opts.accept, "accept", false, "persist the ok rows as manual raids")
	return cmd
}

// acceptRequest keeps the ok rows, bound to their matched members.
func acceptRequest(res types.AnalysisResult) types.AcceptRequest {
	req := types.AcceptRequest{Month: res.Month}
	for _, row := range res.Rows {
		if row.Status != model.StatusOK {
			continue
		}
		r := types.AcceptedRow{
			Raider: row.RaiderRaw,
			Target: row.TargetRaw,
			Date:   row.Date,
			Count:  1,
			Source: model.SourceManual,
		}
		if row.MatchedRaider != nil {
			r.RaiderID = row.MatchedRaider.ID
		}
		if row.MatchedTarget != nil {
			r.TargetID = row.MatchedTarget.ID
		}
		req.Raids = append(req.Raids, r)
	}
	return req
}

type viewOptions struct {
	discord, twitch, manual bool
}

func newViewCommand(root *rootOptions) *cobra.Command {
	opts := &viewOptions{}
	cmd := &cobra.Command{
		Use:   "view [month]",
		Short: "Show a month's raid totals and alerts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("discord", strconv.FormatBool(opts.discord))
			q.Set("twitch", strconv.FormatBool(opts.twitch))
			q.Set("manual", strconv.FormatBool(opts.manual))
			path := "/raids/month/" + url.PathEscape(args[0]) + "?" + q.Encode()

			var view types.MonthlyView
			if err := newClient(root).do(cmd.Context(), http.MethodGet, path, nil, &view); err != nil {
				return err
			}
			return renderView(cmd.OutOrStdout(), view, root.json)
		},
	}
	cmd.Flags().BoolVar(&opts.discord, "discord", true, "include discord relay raids")
	cmd.Flags().BoolVar(&opts.twitch, "twitch", true, "include twitch relay raids")
	cmd.Flags().BoolVar(&opts.manual, "manual", true, "include manually accepted raids")
	return cmd
}
