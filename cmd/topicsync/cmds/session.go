package cmds

import (
	"context"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/topicsync/pkg/config"
	"github.com/go-go-golems/topicsync/pkg/hashcodec"
	"github.com/go-go-golems/topicsync/pkg/snippets"
	"github.com/go-go-golems/topicsync/pkg/stream"
	"github.com/go-go-golems/topicsync/pkg/subscription"
	"github.com/go-go-golems/topicsync/pkg/syncctl"
	"github.com/go-go-golems/topicsync/pkg/topics"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// app is one live stream session and its controller.
type app struct {
	Session    *stream.Session
	Controller *syncctl.Controller
}

// configSource resolves --config, falling back to the document next to the
// push server.
func (s *rootSettings) configSource() string {
	if s.Config != "" {
		return s.Config
	}
	return s.BaseURL + "/" + config.DefaultFilename
}

// hashQuery decodes --hash, which may be a bare fragment or a share URL.
func (s *rootSettings) hashQuery() hashcodec.Query {
	h := s.Hash
	if i := strings.Index(h, "#"); i >= 0 {
		h = h[i:]
	}
	return hashcodec.Decode(h)
}

func (s *rootSettings) loadRegistry(ctx context.Context) (*topics.Registry, *config.Document, error) {
	doc, err := config.Load(ctx, s.configSource())
	if err != nil {
		return nil, nil, err
	}
	return topics.NewRegistry(doc.AllowedTopics()), doc, nil
}

func (s *rootSettings) sessionID() (string, error) {
	if s.SessionID == "" {
		return uuid.New().String(), nil
	}
	id, err := uuid.Parse(s.SessionID)
	if err != nil {
		return "", errors.Wrap(err, "parse --session-id")
	}
	return id.String(), nil
}

func (s *rootSettings) snippetOptions() snippets.Options {
	name, pass := s.credentials()
	return snippets.Options{BaseURL: s.BaseURL, Username: name, Password: pass}
}

func (s *rootSettings) newApp(ctx context.Context, pub message.Publisher) (*app, error) {
	reg, doc, err := s.loadRegistry(ctx)
	if err != nil {
		return nil, err
	}
	q := s.hashQuery()
	syncctl.Bootstrap(reg, q, doc.InitialTopics())

	id, err := s.sessionID()
	if err != nil {
		return nil, err
	}
	name, pass := s.credentials()

	sess, err := stream.NewSession(stream.Options{
		SessionID: id,
		Dialer:    &stream.HTTPDialer{BaseURL: s.BaseURL, Username: name, Password: pass},
		Backoff:   stream.Backoff{Min: s.ReconnectBackoff, Max: s.ReconnectMax},
		Logger:    s.logger,
	})
	if err != nil {
		return nil, err
	}
	ctrl, err := syncctl.New(syncctl.Options{
		Registry: reg,
		Session:  sess,
		Subscriber: subscription.New(subscription.Options{
			BaseURL:  s.BaseURL,
			Username: name,
			Password: pass,
			Timeout:  s.Timeout,
			Logger:   s.logger,
		}),
		Publisher:     pub,
		BaseURL:       s.BaseURL,
		Snippets:      s.snippetOptions(),
		SubmitOnStart: q.Submit,
		Logger:        s.logger,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("session_id", id).Strs("topics", reg.CurrentSelection()).Msg("starting session")
	return &app{Session: sess, Controller: ctrl}, nil
}

// start runs the session and the controller in g. Both stop when ctx ends.
func (a *app) start(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error { return a.Controller.Run(ctx) })
	g.Go(func() error {
		defer a.Session.Close()
		return a.Session.Run(ctx)
	})
}
