package loader

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nathoo/storyscript/types"
)

var optionPattern = regexp.MustCompile(`^(\d+)\.\s*(.*)$`)

// parseQuiz reads a <<quizzes:id>> section. Each unindented line starts a
// question "speakerId: prompt"; its indented body holds "answer: N" and the
// numbered options "N. text", each optionally followed by "> reaction".
// Option numbers start at 1 and must be consecutive.
func parseQuiz(pc *parseContext, header, body string) error {
	id := sectionQualifier(header)
	if id == "" {
		return pc.errorf(0, "quiz section needs an id, as in <<quizzes:final>>")
	}
	if err := pc.checkIdent(0, "quiz", id); err != nil {
		return err
	}
	if _, dup := pc.world.Quizzes[id]; dup {
		return pc.errorf(0, "quiz %q declared twice", id)
	}

	paras, err := SplitToParagraph(strings.Split(body, "\n"))
	if err != nil {
		return pc.wrap(0, err, "splitting quiz %q", id)
	}
	if len(paras) == 0 {
		return pc.errorf(0, "quiz %q has no questions", id)
	}

	quiz := &types.Quiz{ID: id}
	for _, para := range paras {
		q, err := parseQuestion(pc, para)
		if err != nil {
			return err
		}
		quiz.Questions = append(quiz.Questions, q)
	}
	pc.world.Quizzes[id] = quiz
	return nil
}

func parseQuestion(pc *parseContext, para Paragraph) (types.QuizQuestion, error) {
	var q types.QuizQuestion
	n := para.Line

	speaker, prompt, ok := splitKeyValue(strings.TrimSpace(para.Header))
	if !ok || speaker == "" || prompt == "" {
		return q, pc.errorf(n, "question needs speakerId: prompt, got %q", strings.TrimSpace(para.Header))
	}
	q.Speaker, q.Prompt = speaker, prompt
	pc.assert(RefCharacter, speaker, "")

	var lines []string
	for _, l := range para.Body {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	groups, err := MapByHeader(lines, optionPattern.MatchString, true)
	if err != nil {
		return q, pc.wrap(n, err, "question %q", prompt)
	}

	answer := 0
	setAnswer := func(l string) (bool, error) {
		key, value, ok := splitKeyValue(l)
		if !ok || key != "answer" {
			return false, nil
		}
		v, err := strconv.Atoi(value)
		if err != nil {
			return true, pc.errorf(n, "question %q: answer %q is not an integer", prompt, value)
		}
		answer = v
		return true, nil
	}

	for _, g := range groups {
		if g.Header == "" {
			for _, l := range g.Lines {
				ok, err := setAnswer(l)
				if err != nil {
					return q, err
				}
				if !ok {
					return q, pc.errorf(n, "question %q: unexpected line %q", prompt, l)
				}
			}
			continue
		}

		m := optionPattern.FindStringSubmatch(g.Header)
		num, err := strconv.Atoi(m[1])
		if err != nil {
			return q, pc.errorf(n, "question %q: option number %q is not an integer", prompt, m[1])
		}
		if num != len(q.Options)+1 {
			return q, pc.errorf(n, "question %q: option %d out of sequence", prompt, num)
		}
		opt := types.QuizOption{Text: strings.TrimSpace(m[2])}
		for _, l := range g.Lines {
			if ok, err := setAnswer(l); ok || err != nil {
				if err != nil {
					return q, err
				}
				continue
			}
			if !strings.HasPrefix(l, ">") {
				return q, pc.errorf(n, "question %q: expected > reaction after option %d, got %q", prompt, num, l)
			}
			if opt.Reaction != "" {
				opt.Reaction += "\n"
			}
			opt.Reaction += strings.TrimSpace(l[1:])
		}
		q.Options = append(q.Options, opt)
	}

	if len(q.Options) == 0 {
		return q, pc.errorf(n, "question %q has no options", prompt)
	}
	if answer < 1 || answer > len(q.Options) {
		return q, pc.errorf(n, "question %q: answer %d is not between 1 and %d", prompt, answer, len(q.Options))
	}
	q.CorrectOption = answer - 1
	return q, nil
}
