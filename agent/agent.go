package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"google.golang.org/genai"
)

// Agent is the interactive assistant session.
type Agent struct {
	w           io.Writer
	r           *bufio.Reader
	Facilitator *Expert
	Experts     []*Expert
	// Render formats answers before printing, they are markdown.
	Render func(string) string
}

// New returns an agent reading questions from r and writing answers to w.
func New(w io.Writer, r io.Reader, experts ...*Expert) *Agent {
	return &Agent{
		w:           w,
		r:           bufio.NewReader(r),
		Experts:     experts,
		Facilitator: newFacilitator(experts...),
		Render:      func(s string) string { return s },
	}
}

// Start opens the chat of every expert.
func (a *Agent) Start(ctx context.Context, client *genai.Client) error {
	for _, e := range a.Experts {
		if err := e.Start(ctx, client); err != nil {
			return err
		}
	}
	return a.Facilitator.Start(ctx, client)
}

const prompt = "dw> "

// Run answers questions until "bye" or the end of input. queued questions
// are asked first, as if typed.
func (a *Agent) Run(ctx context.Context, client *genai.Client, queued ...string) error {
	if a.Facilitator.chat == nil {
		if err := a.Start(ctx, client); err != nil {
			return err
		}
	}
	fmt.Fprintln(a.w, "DenoWallet asistanı. Çıkmak için 'bye' yazın.")

	for {
		fmt.Fprint(a.w, prompt)
		question, err := a.next(&queued)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch question {
		case "bye":
			return nil
		case "":
			continue
		}

		answer, err := a.Facilitator.Ask(ctx, &genai.Part{Text: question})
		if err != nil {
			return err
		}
		if len(answer.Parts) == 0 {
			continue
		}
		fmt.Fprintln(a.w, a.Render(answer.Parts[0].Text))
	}
}

// next pops the first queued question, echoed, or reads a line of input.
func (a *Agent) next(queued *[]string) (string, error) {
	if len(*queued) > 0 {
		q := strings.TrimSpace((*queued)[0])
		*queued = (*queued)[1:]
		fmt.Fprintln(a.w, q)
		return q, nil
	}
	line, err := a.r.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
