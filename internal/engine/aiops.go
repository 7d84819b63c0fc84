package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ShayCichocki/gantry/internal/ai"
	"github.com/ShayCichocki/gantry/internal/complexity"
	"github.com/ShayCichocki/gantry/pkg/models"
)

// errNoChange signals a legitimate nothing-to-do outcome out of a
// Mutate closure so the store skips the write entirely.
var errNoChange = errors.New("no change requested")

func roleFor(research bool) ai.Role {
	if research {
		return ai.RoleResearch
	}
	return ai.RoleMain
}

// UpdateWithAI asks the model to rewrite a task per the instruction.
// When the model reports the task already satisfies the instruction the
// operation succeeds with Updated=false and nothing is written.
func (e *Engine) UpdateWithAI(ctx context.Context, id int, instruction string, research bool) *Result {
	o := e.begin("update-ai")
	runner := e.runner(o)
	if runner == nil {
		return o.fail(errf(CodeProvider, "no AI provider configured"))
	}
	if strings.TrimSpace(instruction) == "" {
		return o.fail(errf(CodeValidation, "instruction must not be empty"))
	}

	var updated models.Task
	var reason string
	err := e.store.Mutate(ctx, func(c *models.Collection) error {
		o.state("LOADED")
		t := c.Find(id)
		if t == nil {
			return errf(CodeNotFound, "task %d not found", id)
		}

		o.state("COMPUTING")
		res, err := runner.Run(ctx, roleFor(research), updatePrompt(*t, instruction))
		if err != nil {
			return errf(CodeProvider, "ai update failed: %v", err)
		}
		var patch aiPatch
		if err := res.Structured(&patch); err != nil {
			return errf(CodeProvider, "unusable provider response: %v", err)
		}
		if patch.NoChange || patch.empty() {
			reason = patch.Reason
			updated = *t
			return errNoChange
		}
		if err := patch.apply(t, time.Now().UTC()); err != nil {
			return err
		}

		o.state("VALIDATING")
		if err := validateGraph(c); err != nil {
			return err
		}
		updated = *t
		return nil
	})
	if errors.Is(err, errNoChange) {
		res := o.noop(&updated)
		res.Message = noChangeMessage(reason)
		return res
	}
	if err != nil {
		return o.fail(err)
	}
	return o.succeed(&updated)
}

func noChangeMessage(reason string) string {
	if reason == "" {
		return "provider reported no change needed"
	}
	return "provider reported no change needed: " + reason
}

// subtaskCandidate is one row of the structured expansion response.
type subtaskCandidate struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Expand appends AI-generated subtasks to a task. Existing subtasks
// survive unless clearFirst is set, and the sub-id allocator never
// reuses ids even after a clear.
func (e *Engine) Expand(ctx context.Context, id int, numSubtasks int, research, clearFirst bool) *Result {
	o := e.begin("expand")
	runner := e.runner(o)
	if runner == nil {
		return o.fail(errf(CodeProvider, "no AI provider configured"))
	}

	var updated models.Task
	err := e.store.Mutate(ctx, func(c *models.Collection) error {
		o.state("LOADED")
		t := c.Find(id)
		if t == nil {
			return errf(CodeNotFound, "task %d not found", id)
		}

		o.state("COMPUTING")
		cands, err := fetchCandidates(ctx, runner, roleFor(research), *t, numSubtasks)
		if err != nil {
			return errf(CodeProvider, "ai expansion failed: %v", err)
		}

		next := t.NextSubtaskID()
		if clearFirst {
			t.Subtasks = nil
		}
		appendCandidates(t, cands, next)
		t.UpdatedAt = time.Now().UTC()

		o.state("VALIDATING")
		if err := validateGraph(c); err != nil {
			return err
		}
		updated = *t
		return nil
	})
	if err != nil {
		return o.fail(err)
	}
	return o.succeed(&updated)
}

// ExpandOutcome is one row of an ExpandAll result.
type ExpandOutcome struct {
	TaskID int    `json:"task_id"`
	Title  string `json:"title"`
	Added  int    `json:"added"`
	Err    string `json:"error,omitempty"`
}

// ExpandAll expands every pending task without subtasks whose
// deterministic complexity score meets the threshold. Candidate lists
// are fetched through a bounded worker pool; one task's provider
// failure only marks that row. All successful expansions commit in a
// single write.
func (e *Engine) ExpandAll(ctx context.Context, threshold, numSubtasks int, research bool) *Result {
	o := e.begin("expand-all")
	runner := e.runner(o)
	if runner == nil {
		return o.fail(errf(CodeProvider, "no AI provider configured"))
	}
	if threshold <= 0 {
		threshold = complexity.DefaultThreshold
	}

	snap, err := e.store.Snapshot(ctx)
	if err != nil {
		return o.fail(err)
	}
	o.state("LOADED")

	var eligible []models.Task
	for _, t := range snap.Tasks {
		if t.Status != models.StatusPending || len(t.Subtasks) > 0 {
			continue
		}
		if score, _ := complexity.Score(t); score >= threshold {
			eligible = append(eligible, t)
		}
	}
	if len(eligible) == 0 {
		res := o.noop([]ExpandOutcome{})
		res.Message = "no tasks needed expansion"
		return res
	}

	o.state("COMPUTING")
	role := roleFor(research)
	type fetched struct {
		cands []subtaskCandidate
		err   error
	}
	results := make([]fetched, len(eligible))

	workers := e.workers
	if workers > len(eligible) {
		workers = len(eligible)
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				cands, err := fetchCandidates(ctx, runner, role, eligible[idx], numSubtasks)
				results[idx] = fetched{cands: cands, err: err}
			}
		}()
	}
feed:
	for i := range eligible {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return o.fail(errf(CodeProvider, "%v", err))
	}

	outcomes := make([]ExpandOutcome, len(eligible))
	anyUsable := false
	for i, t := range eligible {
		outcomes[i] = ExpandOutcome{TaskID: t.ID, Title: t.Title}
		if results[i].err != nil {
			outcomes[i].Err = results[i].err.Error()
			continue
		}
		anyUsable = true
	}
	if !anyUsable {
		return o.fail(errf(CodeProvider, "every expansion call failed (%d task(s))", len(eligible)))
	}

	applied := 0
	err = e.store.Mutate(ctx, func(c *models.Collection) error {
		now := time.Now().UTC()
		for i, t := range eligible {
			if results[i].err != nil {
				continue
			}
			fresh := c.Find(t.ID)
			if fresh == nil {
				outcomes[i].Added = 0
				outcomes[i].Err = "task no longer exists"
				continue
			}
			appendCandidates(fresh, results[i].cands, fresh.NextSubtaskID())
			fresh.UpdatedAt = now
			outcomes[i].Added = len(results[i].cands)
			applied++
		}
		if applied == 0 {
			return errNoChange
		}

		o.state("VALIDATING")
		return validateGraph(c)
	})
	if errors.Is(err, errNoChange) {
		res := o.noop(outcomes)
		res.Message = "no expansions applied"
		return res
	}
	if err != nil {
		return o.fail(err)
	}
	return o.succeed(outcomes)
}

// fetchCandidates runs one expansion call and filters the response down
// to usable rows.
func fetchCandidates(ctx context.Context, runner *ai.Orchestrator, role ai.Role, t models.Task, num int) ([]subtaskCandidate, error) {
	res, err := runner.Run(ctx, role, expandPrompt(t, num))
	if err != nil {
		return nil, err
	}
	var cands []subtaskCandidate
	if err := res.Structured(&cands); err != nil {
		return nil, err
	}

	usable := cands[:0]
	for _, cand := range cands {
		if strings.TrimSpace(cand.Title) == "" {
			continue
		}
		usable = append(usable, cand)
	}
	if num > 0 && len(usable) > num {
		usable = usable[:num]
	}
	if len(usable) == 0 {
		return nil, fmt.Errorf("provider returned no usable subtask candidates")
	}
	return usable, nil
}

// appendCandidates turns candidates into pending subtasks with ids
// allocated from next upward.
func appendCandidates(t *models.Task, cands []subtaskCandidate, next int) {
	for i, cand := range cands {
		t.Subtasks = append(t.Subtasks, models.Subtask{
			ID:          next + i,
			Title:       cand.Title,
			Description: cand.Description,
			Status:      models.SubtaskPending,
		})
	}
}

func taskJSON(t models.Task) string {
	b, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", t)
	}
	return string(b)
}

func updatePrompt(t models.Task, instruction string) ai.PromptSpec {
	var b strings.Builder
	b.WriteString("Update this task according to the instruction.\n\nCurrent task:\n")
	b.WriteString(taskJSON(t))
	fmt.Fprintf(&b, "\n\nInstruction: %s\n\n", instruction)
	b.WriteString(`Respond with a JSON object containing only the fields that should change, chosen from "title", "description", "details", "test_strategy". `)
	b.WriteString(`If the task already satisfies the instruction, respond with {"no_change": true, "reason": "<one sentence>"}.`)

	return ai.PromptSpec{
		System: "You are a technical project planner. Reply with JSON only.",
		Prompt: b.String(),
		Shape:  ai.ShapeStructured,
	}
}

func expandPrompt(t models.Task, num int) ai.PromptSpec {
	var b strings.Builder
	b.WriteString("Break this task into concrete, independently workable subtasks.\n\nTask:\n")
	b.WriteString(taskJSON(t))
	b.WriteString("\n\n")
	if num > 0 {
		fmt.Fprintf(&b, "Produce exactly %d subtasks. ", num)
	} else {
		b.WriteString("Choose a sensible count between 3 and 8. ")
	}
	b.WriteString(`Respond with a JSON array: [{"title": "<short imperative>", "description": "<what done looks like>"}].`)

	return ai.PromptSpec{
		System: "You are a technical project planner. Reply with JSON only.",
		Prompt: b.String(),
		Shape:  ai.ShapeStructured,
	}
}
