package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/quorumdesk/quorumdesk/internal/config"
	"github.com/quorumdesk/quorumdesk/internal/voting"
)

// errNoVoting is returned by commands that need a voting session
var errNoVoting = errors.New("no voting session selected: use --voting or scope.votingID")

// votingConfig loads the configuration and requires a voting session
func (o *rootOptions) votingConfig() (*config.Config, string, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, "", err
	}
	votingID := cfg.GetScope().VotingID
	if votingID == "" {
		return nil, "", errNoVoting
	}
	return cfg, votingID, nil
}

func newQuestionsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "questions",
		Short: "List the questions of the voting session with their options",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := opts.reportWriter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			cfg, votingID, err := opts.votingConfig()
			if err != nil {
				return err
			}

			s, err := opts.openSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			questions, err := s.Components().Service.ListQuestions(cmd.Context(), votingID)
			if err != nil {
				return err
			}
			return out.Questions(questions)
		},
	}
}

func newVoteCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vote",
		Short: "Submit the ballot of one question",
		Long: `Submit the ballot of one question of the voting session. The ballot file names the
question, an optional option assigned to every attendee and per-attendee selections:

  question: 4
  assignAll: 10
  selections:
    12: 11

Every selection is sent as a vote weighted by the attendee's shares. A question already
submitted from this machine is refused unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString("ballot")
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			file, err := voting.LoadBallotFile(path)
			if err != nil {
				return err
			}
			out, err := opts.reportWriter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			cfg, votingID, err := opts.votingConfig()
			if err != nil {
				return err
			}

			s, err := opts.openSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			svc := s.Components().Service
			questions, err := svc.ListQuestions(ctx, votingID)
			if err != nil {
				return err
			}
			attendees, err := svc.ListAttendees(ctx, votingID)
			if err != nil {
				return err
			}
			ballot, err := file.Build(votingID, questions, attendees)
			if err != nil {
				return err
			}

			result, submitErr := s.Components().Submitter.Submit(ctx, voting.Request{
				Ballot:    ballot,
				Attendees: attendees,
				Force:     force,
			})
			if submitErr != nil && !voting.IsBatchError(submitErr) {
				return submitErr
			}

			if err := out.Tally(ballot.Question, ballot.Tally(attendees)); err != nil {
				return err
			}
			if submitErr != nil {
				return submitErr
			}

			slog.Debug("Ballot submitted", "voting", votingID, "question", ballot.Question.ID, "requests", result.Requests)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d votos enviados\n", result.Requests)
			return err
		},
	}
	cmd.Flags().String("ballot", "", "Path to the ballot file (YAML format, required)")
	cmd.Flags().Bool("force", false, "Submit even if the question was already voted")
	if err := cmd.MarkFlagRequired("ballot"); err != nil {
		slog.Error("Failed to mark ballot flag as required", "error", err)
	}
	return cmd
}
