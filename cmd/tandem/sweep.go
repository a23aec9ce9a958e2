/*
 * Copyright 2025 The Yorkie Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yorkie-team/tandem/api/types"
	"github.com/yorkie-team/tandem/server"
)

var (
	sweepDryRun bool
	sweepOutput string
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep [options]",
		Short: "Remove sessions inactive for longer than the retention period",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if sweepOutput != "" && sweepOutput != "yaml" && sweepOutput != "json" {
				return errors.New(`--output must be 'yaml' or 'json'`)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(); err != nil {
				return err
			}

			t, err := server.New(conf)
			if err != nil {
				return err
			}
			defer func() {
				_ = t.Shutdown(true)
			}()

			result, err := t.Sweep(context.Background(), sweepDryRun)
			if err != nil {
				return err
			}

			return printSweepResult(cmd, result)
		},
	}

	cmd.Flags().BoolVar(
		&sweepDryRun,
		"dry-run",
		false,
		"Report stale sessions without deleting them",
	)
	cmd.Flags().StringVarP(
		&sweepOutput,
		"output",
		"o",
		"",
		"One of 'yaml' or 'json'.",
	)
	addCommonFlags(cmd)

	return cmd
}

func printSweepResult(cmd *cobra.Command, result *types.SweepResult) error {
	out := cmd.OutOrStdout()
	switch sweepOutput {
	case "yaml":
		marshalled, err := yaml.Marshal(result)
		if err != nil {
			return errors.New("failed to marshal YAML")
		}
		_, _ = fmt.Fprintln(out, string(marshalled))
	case "json":
		marshalled, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return errors.New("failed to marshal JSON")
		}
		_, _ = fmt.Fprintln(out, string(marshalled))
	default:
		tw := table.NewWriter()
		tw.Style().Options.DrawBorder = false
		tw.Style().Options.SeparateColumns = false
		tw.Style().Options.SeparateFooter = false
		tw.Style().Options.SeparateHeader = false
		tw.Style().Options.SeparateRows = false
		tw.AppendHeader(table.Row{
			"KEY",
			"SIZE",
			"LAST ACTIVE",
		})
		for _, session := range result.Sessions {
			tw.AppendRow(table.Row{
				session.Key,
				session.SizeBytes,
				session.LastActiveAt.Format(time.RFC3339),
			})
		}

		verb := "DELETED"
		if result.DryRun {
			verb = "WOULD DELETE"
		}
		tw.AppendFooter(table.Row{
			fmt.Sprintf("%s %d SESSIONS", verb, result.DeletedCount),
			result.BytesFreed,
			"",
		})
		_, _ = fmt.Fprintf(out, "%s\n", tw.Render())
	}

	return nil
}
