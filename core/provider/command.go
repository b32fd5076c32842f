package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/template"
)

// CommandConfig describes a command that fetches JSON and renders a reply.
//
// URL and Reply are text/template sources. Both see .Args (the command
// arguments), .Arg (arguments joined by spaces); Reply also sees .Data, the
// decoded JSON body. Helper funcs: env, query, upper, lower, title, number,
// mul, div. Values returned by env are masked in errors and logs.
type CommandConfig struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Aliases     []string          `yaml:"aliases"`
	URL         string            `yaml:"url"`
	Headers     map[string]string `yaml:"headers"`
	Reply       string            `yaml:"reply"`
	MinArgs     int               `yaml:"min_args"`
	Usage       string            `yaml:"usage"`
	FailureText string            `yaml:"failure_text"`
}

// Command renders CommandConfig against a Fetcher.
type Command struct {
	cfg     CommandConfig
	url     *template.Template
	reply   *template.Template
	headers map[string]*template.Template
	fetcher Fetcher
}

var templateFuncs = template.FuncMap{
	"env":   os.Getenv,
	"query": url.QueryEscape,
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"title": func(s string) string {
		if s == "" {
			return s
		}
		r := []rune(s)
		return strings.ToUpper(string(r[0])) + string(r[1:])
	},
	"number": toNumber,
	"mul":    func(a, b float64) float64 { return a * b },
	"div": func(a, b float64) (float64, error) {
		if b == 0 {
			return 0, errors.New("division by zero")
		}
		return a / b, nil
	},
}

// toNumber turns a command argument or a JSON value into a float64.
func toNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case string:
		n = strings.TrimSpace(n)
		if strings.Contains(strings.ToLower(n), "0x") {
			return 0, fmt.Errorf("not a number: %q", n)
		}
		f, err := strconv.ParseFloat(n, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("not a number: %q", n)
		}
		return f, nil
	}
	return 0, fmt.Errorf("not a number: %v", v)
}

// NewCommand parses the templates in cfg.
func NewCommand(cfg CommandConfig, f Fetcher) (*Command, error) {
	if strings.TrimSpace(cfg.Name) == "" || cfg.URL == "" || cfg.Reply == "" {
		return nil, errors.New("provider: command needs name, url and reply")
	}
	if f == nil {
		return nil, errors.New("provider: nil fetcher")
	}
	c := &Command{cfg: cfg, fetcher: f, headers: map[string]*template.Template{}}
	var err error
	if c.url, err = template.New(cfg.Name + ".url").Funcs(templateFuncs).Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("provider: %s url: %w", cfg.Name, err)
	}
	if c.reply, err = template.New(cfg.Name + ".reply").Funcs(templateFuncs).Option("missingkey=zero").Parse(cfg.Reply); err != nil {
		return nil, fmt.Errorf("provider: %s reply: %w", cfg.Name, err)
	}
	for k, v := range cfg.Headers {
		t, err := template.New(cfg.Name + "." + k).Funcs(templateFuncs).Parse(v)
		if err != nil {
			return nil, fmt.Errorf("provider: %s header %s: %w", cfg.Name, k, err)
		}
		c.headers[k] = t
	}
	return c, nil
}

// Config returns the configuration the command was built from.
func (c *Command) Config() CommandConfig { return c.cfg }

type renderData struct {
	Args []string
	Arg  string
	Data any
}

// secretFuncs returns funcs for one render whose env records every value it
// returns, so the values can be masked in errors.
func secretFuncs(secrets *[]string) template.FuncMap {
	return template.FuncMap{"env": func(key string) string {
		v := os.Getenv(key)
		if v != "" {
			*secrets = append(*secrets, v)
		}
		return v
	}}
}

// renderSecret renders t with env values recorded into secrets.
func renderSecret(t *template.Template, data renderData, secrets *[]string) (string, error) {
	clone, err := t.Clone()
	if err != nil {
		return "", err
	}
	return render(clone.Funcs(secretFuncs(secrets)), data)
}

// Run fetches and renders. With too few args it returns the usage text.
// On failure the returned text is FailureText, so callers can reply with it.
func (c *Command) Run(ctx context.Context, args []string) (string, error) {
	if len(args) < c.cfg.MinArgs {
		return c.cfg.Usage, nil
	}
	data := renderData{Args: args, Arg: strings.Join(args, " ")}

	var secrets []string
	rawURL, err := renderSecret(c.url, data, &secrets)
	if err != nil {
		return c.cfg.FailureText, err
	}
	req := Request{Method: http.MethodGet, URL: rawURL, Header: http.Header{}}
	for k, t := range c.headers {
		v, err := renderSecret(t, data, &secrets)
		if err != nil {
			return c.cfg.FailureText, err
		}
		req.Header.Set(k, v)
	}
	req.Secrets = secrets

	resp, err := c.fetcher.Fetch(ctx, req)
	if err != nil {
		return c.cfg.FailureText, err
	}
	if err := resp.JSON(&data.Data); err != nil {
		return c.cfg.FailureText, newFetchError(req, resp.Status, fmt.Errorf("decode: %w", err))
	}
	out, err := render(c.reply, data)
	if err != nil {
		return c.cfg.FailureText, err
	}
	return strings.TrimSpace(out), nil
}

func render(t *template.Template, data renderData) (string, error) {
	var b bytes.Buffer
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("provider: render %s: %w", t.Name(), err)
	}
	return b.String(), nil
}
