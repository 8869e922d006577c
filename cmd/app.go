package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/xhad/askpdf/internal/models"
	"github.com/xhad/askpdf/pkg/loader"
	"github.com/xhad/askpdf/pkg/session"
	"github.com/xhad/askpdf/pkg/stream"
	"github.com/xhad/askpdf/pkg/transcript"
)

var quickQuestions = []string{
	"Summarize the main topics",
	"What are the key findings?",
	"Explain the methodology",
	"List important dates/events",
	"Who are the main contributors?",
}

const helpText = `Commands:
  /upload PATH...   upload PDF files or directories
  /docs             list the knowledge base
  /status           check the backend
  /topk [N]         show or set retrieval chunks per query (1-10)
  /stream on|off    toggle streamed answers
  /clear            clear the chat
  /history          print the chat so far
  /q [N]            list quick questions, or ask number N
  /export FILE      save the chat as .md or .html
  /help             show this help
  exit              quit
Anything else is sent as a question.`

// App is the terminal front end. It only talks to the session controller.
type App struct {
	controller *session.Controller
	loader     *loader.Loader
	status     *statusCache
	showSource bool
	out        io.Writer
}

func (a *App) printf(c *color.Color, format string, args ...interface{}) {
	c.Fprintf(a.out, format, args...)
}

var (
	infoColor      = color.New(color.FgBlue)
	okColor        = color.New(color.FgGreen)
	errColor       = color.New(color.FgRed)
	userColor      = color.New(color.FgGreen)
	assistantColor = color.New(color.FgCyan)
	dimColor       = color.New(color.Faint)
)

func (a *App) printHeader(ctx context.Context, baseURL string) {
	snapshot := a.status.Get(ctx)
	a.printf(assistantColor, "\nPDF RAG Assistant (%s)  %s  documents: %d\n", baseURL, badge(snapshot), snapshot.DocumentCount)
	a.printf(dimColor, "Type /help for commands, 'exit' to quit.\n")
	a.printTurn(a.controller.Transcript()[0])
}

func (a *App) repl(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		a.printf(userColor, "\n%s You: ", badge(a.status.Get(ctx)))
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if isExit(line) {
			break
		}
		a.handle(ctx, line)
	}
	fmt.Fprintln(a.out)
	return scanner.Err()
}

func (a *App) handle(ctx context.Context, line string) {
	if !strings.HasPrefix(line, "/") {
		a.ask(ctx, line)
		return
	}

	fields := strings.Fields(line)
	command, args := fields[0], fields[1:]

	switch command {
	case "/upload":
		if len(args) == 0 {
			a.printf(errColor, "Usage: /upload PATH...\n")
			return
		}
		a.upload(ctx, args)
	case "/docs":
		a.printDocuments()
	case "/status":
		snapshot := a.status.Refresh(ctx)
		a.printf(infoColor, "API: %s  documents: %d\n", badge(snapshot), snapshot.DocumentCount)
	case "/topk":
		a.topK(args)
	case "/stream":
		a.streaming(args)
	case "/clear":
		a.controller.ClearConversation()
		a.printTurn(a.controller.Transcript()[0])
	case "/history":
		for _, turn := range a.controller.Transcript() {
			a.printTurn(turn)
		}
	case "/q":
		a.quick(ctx, args)
	case "/export":
		if len(args) != 1 {
			a.printf(errColor, "Usage: /export FILE\n")
			return
		}
		if err := transcript.WriteFile(args[0], a.controller.Transcript()); err != nil {
			a.printf(errColor, "Export failed: %v\n", err)
			return
		}
		a.printf(okColor, "✓ Chat saved to %s\n", args[0])
	case "/help":
		fmt.Fprintln(a.out, helpText)
	default:
		a.printf(errColor, "Unknown command %s, try /help\n", command)
	}
}

func (a *App) ask(ctx context.Context, question string) {
	qctx, stop := interruptible(ctx)
	defer stop()

	spinner := getSpinner(a.out, " Thinking...")
	var streamed strings.Builder

	turn, err := a.controller.SubmitQuestion(qctx, question, func(p stream.Progress) {
		if streamed.Len() == 0 {
			spinner.Finish()
			a.printf(assistantColor, "\nAssistant: ")
		}
		streamed.WriteString(p.Fragment)
		fmt.Fprint(a.out, p.Fragment)
	})
	if streamed.Len() == 0 {
		spinner.Finish()
	}

	switch {
	case errors.Is(err, session.ErrBusy):
		a.printf(errColor, "Still answering the previous question, please wait.\n")
		return
	case err != nil:
		a.printf(errColor, "%v\n", err)
		return
	}

	if streamed.Len() == 0 {
		a.printTurn(turn)
		return
	}

	if rest := strings.TrimPrefix(turn.Content, streamed.String()); rest != "" {
		a.printf(errColor, "%s", rest)
	}
	fmt.Fprintln(a.out)
	a.printSources(turn)
}

func (a *App) printTurn(turn models.Turn) {
	if turn.Role == models.RoleUser {
		a.printf(userColor, "\nYou: ")
		fmt.Fprintln(a.out, turn.Content)
		return
	}

	a.printf(assistantColor, "\nAssistant: ")
	if turn.Incomplete {
		a.printf(errColor, "%s\n", turn.Content)
	} else {
		fmt.Fprintln(a.out, turn.Content)
	}
	a.printSources(turn)
}

func (a *App) printSources(turn models.Turn) {
	if !a.showSource || len(turn.Sources) == 0 {
		return
	}
	a.printf(dimColor, "Answer based on %d document chunks:\n", len(turn.Sources))
	for i, src := range turn.Sources {
		text := strings.Join(strings.Fields(src.Text), " ")
		if len(text) > 200 {
			text = text[:200] + "..."
		}
		a.printf(dimColor, "  %d. %s\n", i+1, text)
	}
}

func (a *App) upload(ctx context.Context, paths []string) {
	files, err := a.loader.Load(paths...)
	if err != nil {
		a.printf(errColor, "%v\n", err)
	}
	if len(files) == 0 {
		a.printf(errColor, "No documents to upload\n")
		return
	}

	bar := getProgressBar(a.out, len(files), " Processing documents")
	var notices []string
	result := a.controller.SubmitDocuments(ctx, files, func(o models.UploadOutcome) {
		bar.Add(1)
		if o.OK() {
			notices = append(notices, okColor.Sprintf("✓ %s: added %d chunks", o.Name, o.Chunks))
		} else {
			notices = append(notices, errColor.Sprintf("✗ %s: %v", o.Name, o.Err))
		}
	})
	bar.Finish()

	for _, n := range notices {
		fmt.Fprintln(a.out, n)
	}
	a.status.Invalidate()
	a.printf(okColor, "Processing complete! Added %d total chunks from %d files.\n", result.TotalChunks, result.Succeeded())
}

func (a *App) autoUpload(ctx context.Context, paths <-chan string) {
	for path := range paths {
		file, err := a.loader.LoadFile(path)
		if err != nil {
			a.printf(errColor, "\n%v\n", err)
			continue
		}
		result := a.controller.SubmitDocuments(ctx, []models.File{file}, nil)
		for _, o := range result.Outcomes {
			if o.OK() {
				a.printf(okColor, "\n✓ %s: added %d chunks\n", o.Name, o.Chunks)
			} else {
				a.printf(errColor, "\n✗ %s: %v\n", o.Name, o.Err)
			}
		}
		a.status.Invalidate()
	}
}

func (a *App) printDocuments() {
	docs := a.controller.Documents()
	if len(docs) == 0 {
		a.printf(infoColor, "Upload documents to build your knowledge base\n")
		return
	}
	for _, d := range docs {
		pages := ""
		if d.Pages > 0 {
			pages = fmt.Sprintf(", %d pages", d.Pages)
		}
		fmt.Fprintf(a.out, "  %s  %d chunks%s  %s at %s\n", d.Name, d.ChunkCount, pages, d.Status, d.IngestedAt.Format("15:04:05"))
	}
	a.printf(infoColor, "Total: %d documents, %d chunks\n", len(docs), a.controller.TotalChunks())
}

func (a *App) topK(args []string) {
	if len(args) == 0 {
		a.printf(infoColor, "top_k = %d\n", a.controller.TopK())
		return
	}
	n, err := strconv.Atoi(args[0])
	if err == nil {
		err = a.controller.SetTopK(n)
	}
	if err != nil {
		a.printf(errColor, "Invalid top_k %q: must be between %d and %d\n", args[0], session.MinTopK, session.MaxTopK)
		return
	}
	a.printf(okColor, "top_k = %d\n", n)
}

func (a *App) streaming(args []string) {
	if len(args) == 1 && (args[0] == "on" || args[0] == "off") {
		a.controller.SetStreaming(args[0] == "on")
	}
	mode := "off (answers include sources)"
	if a.controller.Streaming() {
		mode = "on"
	}
	a.printf(infoColor, "streaming %s\n", mode)
}

func (a *App) quick(ctx context.Context, args []string) {
	if len(args) == 0 {
		for i, q := range quickQuestions {
			fmt.Fprintf(a.out, "  %d. %s\n", i+1, q)
		}
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(quickQuestions) {
		a.printf(errColor, "Pick a question between 1 and %d\n", len(quickQuestions))
		return
	}
	question := quickQuestions[n-1]
	a.printf(userColor, "You: ")
	fmt.Fprintln(a.out, question)
	a.ask(ctx, question)
}
