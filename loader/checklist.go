package loader

import (
	"strconv"
	"strings"

	"github.com/nathoo/storyscript/types"
)

// parseObjectives reads one "key[: description]" line per objective.
func parseObjectives(pc *parseContext, _, body string) error {
	for _, nl := range numberLines(body) {
		key, note := nl.text, ""
		if k, v, ok := splitKeyValue(nl.text); ok {
			key, note = k, v
		}
		if err := pc.checkIdent(nl.n, "objective", key); err != nil {
			return err
		}
		if pc.checklist.HasObjective(key) || pc.checklist.HasTask(key) {
			return pc.errorf(nl.n, "checklist key %q declared twice", key)
		}
		pc.checklist.Objectives = append(pc.checklist.Objectives, key)
		if note != "" {
			pc.checklist.ObjectiveNotes[key] = note
		}
	}
	return nil
}

// parseTasks reads one paragraph per task: the key, then indented title,
// description and visible lines. Tasks start visible unless told otherwise.
func parseTasks(pc *parseContext, _, body string) error {
	paras, err := SplitToParagraph(strings.Split(body, "\n"))
	if err != nil {
		return pc.wrap(0, err, "splitting tasks")
	}

	for _, para := range paras {
		key := strings.TrimSpace(para.Header)
		if err := pc.checkIdent(para.Line, "task", key); err != nil {
			return err
		}
		if pc.checklist.HasObjective(key) || pc.checklist.HasTask(key) {
			return pc.errorf(para.Line, "checklist key %q declared twice", key)
		}

		task := types.GameTask{Key: key, Title: key, Visible: true}
		for i, raw := range para.Body {
			line := strings.TrimSpace(raw)
			if line == "" {
				continue
			}
			n := para.Line + i + 1
			k, v, ok := splitKeyValue(line)
			if !ok {
				return pc.errorf(n, "task %q: expected key: value, got %q", key, line)
			}
			switch k {
			case "title":
				task.Title = v
			case "description":
				task.Description = v
			case "visible":
				b, err := strconv.ParseBool(v)
				if err != nil {
					return pc.errorf(n, "task %q: visible %q is not a boolean", key, v)
				}
				task.Visible = b
			default:
				return pc.errorf(n, "task %q: unknown key %q", key, k)
			}
		}

		pc.checklist.Tasks = append(pc.checklist.Tasks, key)
		pc.checklist.TaskDetails[key] = task
	}
	return nil
}
