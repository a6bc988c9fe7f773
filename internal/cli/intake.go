package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"callcenter/internal/api"
	"callcenter/internal/grievance"
)

// NewMasterCmd creates the master command.
func NewMasterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "master",
		Short: "List roles, query types and districts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContext(cmd, func(ctx context.Context, cc *CommandContext) error {
				m, fallback, err := grievance.LoadMaster(ctx, cc.Client)
				if err != nil {
					return err
				}
				data := api.MasterData{Role: m.Roles, QueryType: m.QueryTypes, District: m.Districts}

				if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
					enc := yaml.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent(2)
					if err := enc.Encode(data); err != nil {
						return err
					}
					return enc.Close()
				}
				if cc.JSONMode {
					return writeJSON(cmd, data)
				}

				out := cmd.OutOrStdout()
				if fallback {
					fmt.Fprintln(out, mutedStyle.Render("(built-in master data)"))
				}
				roles := newTable("ID", "Role")
				for _, r := range m.Roles {
					roles.Row(strconv.FormatInt(int64(r.ID), 10), r.Name)
				}
				queries := newTable("ID", "Query Type")
				for _, q := range m.QueryTypes {
					queries.Row(strconv.FormatInt(int64(q.ID), 10), q.Name)
				}
				districts := newTable("ID", "District")
				for _, d := range m.Districts {
					districts.Row(strconv.FormatInt(int64(d.ID), 10), d.Name)
				}
				fmt.Fprintln(out, roles.Render())
				fmt.Fprintln(out, queries.Render())
				fmt.Fprintln(out, districts.Render())
				return nil
			})
		},
	}

	cmd.Flags().Bool("yaml", false, "output in YAML format")
	return cmd
}

// NewQuestionsCmd creates the questions command.
func NewQuestionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "List feedback questions for a role and query type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContext(cmd, func(ctx context.Context, cc *CommandContext) error {
				role, _ := cmd.Flags().GetString("role")
				queryType, _ := cmd.Flags().GetString("query-type")

				m, _, err := grievance.LoadMaster(ctx, cc.Client)
				if err != nil {
					return err
				}
				questions, err := grievance.LoadQuestions(ctx, cc.Client, m, role, queryType)
				if err != nil {
					return err
				}
				if cc.JSONMode {
					return writeJSON(cmd, questions)
				}
				if len(questions) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("No questions"))
					return nil
				}
				t := newTable("ID", "Question", "Answer")
				for _, q := range questions {
					t.Row(strconv.FormatInt(int64(q.ID), 10), q.Text, answerHint(q))
				}
				fmt.Fprintln(cmd.OutOrStdout(), t.Render())
				return nil
			})
		},
	}

	cmd.Flags().String("role", "", "role name")
	cmd.Flags().String("query-type", "", "query type name")
	cmd.MarkFlagRequired("role")
	cmd.MarkFlagRequired("query-type")
	return cmd
}

func answerHint(q api.Question) string {
	switch q.Kind() {
	case api.QuestionYesNo:
		return "Yes/No"
	case api.QuestionRating:
		return "1-5"
	default:
		return "text"
	}
}

// NewCandidatesCmd creates the candidates command.
func NewCandidatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "candidates <text>",
		Short: "Search registered candidates, partners, centers and trainers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContext(cmd, func(ctx context.Context, cc *CommandContext) error {
				role, _ := cmd.Flags().GetString("role")
				by, _ := cmd.Flags().GetString("by")

				if err := checkSearchKind(role, by); err != nil {
					return err
				}
				found, err := grievance.SearchCandidates(ctx, cc.Client, role, by, args[0])
				if err != nil {
					return err
				}
				if cc.JSONMode {
					return writeJSON(cmd, found)
				}
				renderCandidates(cmd, found)
				return nil
			})
		},
	}

	cmd.Flags().String("role", "Candidate", "role to search (Candidate, Training Partner, Training Center, Trainer)")
	cmd.Flags().String("by", grievance.SearchByName, "search by name, mobile or id")
	cmd.RegisterFlagCompletionFunc("role", completeRoles)
	return cmd
}

func checkSearchKind(role, kind string) error {
	kinds := grievance.SearchKinds(role)
	for _, k := range kinds {
		if k == kind {
			return nil
		}
	}
	return fmt.Errorf("%s search supports --by %s", role, strings.Join(kinds, ", "))
}

// completeRoles offers the built-in role names; completion runs offline.
func completeRoles(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	m, err := grievance.FallbackMaster()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	return m.RoleNames(), cobra.ShellCompDirectiveNoFileComp
}

func renderCandidates(cmd *cobra.Command, found []api.Candidate) {
	if len(found) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("No matches"))
		return
	}
	t := newTable("#", "ID", "Name", "Mobile", "District", "Address")
	for i, c := range found {
		t.Row(strconv.Itoa(i+1), strconv.FormatInt(c.ResolvedID(), 10), c.DisplayName(),
			string(c.Mobile), c.District, c.Address)
	}
	fmt.Fprintln(cmd.OutOrStdout(), t.Render())
}

// NewSubmitCmd creates the submit command and its entry-type subcommands.
func NewSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Record a grievance or feedback call",
	}
	cmd.AddCommand(
		newSubmitFormCmd(grievance.EntryIncoming, "Record an incoming grievance"),
		newSubmitFormCmd(grievance.EntryOutgoing, "Record outgoing feedback with question answers"),
		newSubmitUnansweredCmd(),
	)
	return cmd
}

func addFormFlags(cmd *cobra.Command) {
	cmd.Flags().String("role", "", "role name")
	cmd.Flags().String("name", "", "caller name")
	cmd.Flags().String("mobile", "", "10 digit mobile number")
	cmd.Flags().String("query-type", "", "query type name")
	cmd.Flags().String("description", "", "query description")
	cmd.Flags().String("district", "", "district name")
	cmd.Flags().String("address", "", "address")
	cmd.Flags().String("find", "", "fill contact fields from a registry search, e.g. mobile=9876543210")
	cmd.Flags().Int("pick", 0, "which search result to use when --find matches several")
	cmd.RegisterFlagCompletionFunc("role", completeRoles)
}

func formFromFlags(cmd *cobra.Command, entryType string) *grievance.Form {
	f := &grievance.Form{EntryType: entryType}
	f.Role, _ = cmd.Flags().GetString("role")
	f.Name, _ = cmd.Flags().GetString("name")
	f.Mobile, _ = cmd.Flags().GetString("mobile")
	f.QueryType, _ = cmd.Flags().GetString("query-type")
	f.Description, _ = cmd.Flags().GetString("description")
	f.District, _ = cmd.Flags().GetString("district")
	f.Address, _ = cmd.Flags().GetString("address")
	return f
}

// applyFind runs the --find search and fills the form from the chosen hit.
// Explicit contact flags still win over the search result.
func applyFind(ctx context.Context, cmd *cobra.Command, cc *CommandContext, f *grievance.Form) error {
	find, _ := cmd.Flags().GetString("find")
	if find == "" {
		if grievance.RequiresSearch(f.Role) {
			fmt.Fprintln(cmd.ErrOrStderr(), mutedStyle.Render(
				"Hint: "+f.Role+" details can be filled from the registry with --find"))
		}
		return nil
	}
	kind, text, ok := strings.Cut(find, "=")
	if !ok {
		kind, text = grievance.SearchByName, find
	}
	if err := checkSearchKind(f.Role, kind); err != nil {
		return err
	}

	found, err := grievance.SearchCandidates(ctx, cc.Client, f.Role, kind, text)
	if err != nil {
		return err
	}
	pick, _ := cmd.Flags().GetInt("pick")
	switch {
	case len(found) == 0:
		return fmt.Errorf("no registered %s matches %q", strings.ToLower(grievance.UserType(f.Role)), text)
	case pick == 0 && len(found) > 1:
		renderCandidates(cmd, found)
		return fmt.Errorf("%d matches; choose one with --pick", len(found))
	case pick == 0:
		pick = 1
	case pick < 1 || pick > len(found):
		return fmt.Errorf("--pick must be between 1 and %d", len(found))
	}

	f.ApplyCandidate(found[pick-1])
	for name, dst := range map[string]*string{
		"name": &f.Name, "mobile": &f.Mobile, "district": &f.District, "address": &f.Address,
	} {
		if cmd.Flags().Changed(name) {
			v, _ := cmd.Flags().GetString(name)
			*dst = v
		}
	}
	return nil
}

// parseAnswers reads --answer id=value[:comment] flags.
func parseAnswers(values []string) (grievance.Responses, error) {
	r := grievance.Responses{}
	for _, v := range values {
		idText, rest, ok := strings.Cut(v, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --answer %q: expected id=value[:comment]", v)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(idText), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --answer %q: question id must be a number", v)
		}
		response, comment, _ := strings.Cut(rest, ":")
		r[id] = grievance.Answer{Response: strings.TrimSpace(response), Comment: strings.TrimSpace(comment)}
	}
	return r, nil
}

func newSubmitFormCmd(entryType, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   entryType,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContext(cmd, func(ctx context.Context, cc *CommandContext) error {
				f := formFromFlags(cmd, entryType)
				if err := applyFind(ctx, cmd, cc, f); err != nil {
					return err
				}

				m, _, err := grievance.LoadMaster(ctx, cc.Client)
				if err != nil {
					return err
				}

				var req api.GrievanceRequest
				if entryType == grievance.EntryOutgoing {
					f.DateTime, _ = cmd.Flags().GetString("at")
					values, _ := cmd.Flags().GetStringArray("answer")
					given, err := parseAnswers(values)
					if err != nil {
						return err
					}
					questions, err := grievance.LoadQuestions(ctx, cc.Client, m, f.Role, f.QueryType)
					if err != nil {
						return err
					}
					answers := grievance.NewResponses(questions)
					for id, a := range given {
						if _, ok := answers[id]; !ok && len(questions) > 0 {
							return fmt.Errorf("question %d is not asked for %s / %s", id, f.Role, f.QueryType)
						}
						answers[id] = a
					}
					req, err = grievance.BuildOutgoing(f, m, questions, answers, time.Now())
					if err != nil {
						return err
					}
				} else {
					if req, err = grievance.BuildIncoming(f, m, time.Now()); err != nil {
						return err
					}
				}

				id, err := grievance.Submit(ctx, cc.Client, req)
				if err != nil {
					return err
				}
				return reportSaved(cmd, cc, id)
			})
		},
	}

	addFormFlags(cmd)
	if entryType == grievance.EntryOutgoing {
		cmd.Flags().String("at", "", "call time, e.g. 2025-08-04T17:00 (default now)")
		cmd.Flags().StringArray("answer", nil, "question answer as id=value[:comment], repeatable")
	}
	return cmd
}

func newSubmitUnansweredCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unanswered",
		Short: "Record a feedback call nobody answered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContext(cmd, func(ctx context.Context, cc *CommandContext) error {
				f := formFromFlags(cmd, grievance.EntryOutgoing)
				if err := applyFind(ctx, cmd, cc, f); err != nil {
					return err
				}
				m, _, err := grievance.LoadMaster(ctx, cc.Client)
				if err != nil {
					return err
				}
				id, err := grievance.SubmitUnanswered(ctx, cc.Client, grievance.BuildUnanswered(f, m, time.Now()))
				if err != nil {
					return err
				}
				return reportSaved(cmd, cc, id)
			})
		},
	}

	addFormFlags(cmd)
	return cmd
}

func reportSaved(cmd *cobra.Command, cc *CommandContext, id int64) error {
	if cc.JSONMode {
		return writeJSON(cmd, map[string]int64{"id": id})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Saved ticket %d\n", okStyle.Render("✓"), id)
	return nil
}
