package ingestion

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const (
	keyringService = "fairhire"
	keyringUser    = "gmail_token"
	tokenFileName  = "gmail_token.json"
)

// GmailHandler downloads plain-text resume attachments from a Gmail inbox
type GmailHandler struct {
	service *gmail.Service
	files   *FileHandler
	logger  *zap.Logger
}

// GmailOptions configures the OAuth flow
type GmailOptions struct {
	CredentialsPath string    // OAuth client secrets downloaded from the Cloud console
	TokenDir        string    // fallback directory for the token when the keychain is unavailable
	Prompt          io.Reader // where the authorization code is read from
	Out             io.Writer // where the authorization URL is printed
}

// NewGmailHandler creates a new Gmail handler, running the OAuth consent flow when no token is cached
func NewGmailHandler(ctx context.Context, opts GmailOptions, files *FileHandler, logger *zap.Logger) (*GmailHandler, error) {
	b, err := os.ReadFile(opts.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	store := &TokenStore{Dir: opts.TokenDir, logger: logger}
	tok, err := store.Load()
	if err != nil {
		tok, err = tokenFromWeb(ctx, config, opts.Prompt, opts.Out)
		if err != nil {
			return nil, err
		}
		if err := store.Save(tok); err != nil {
			return nil, fmt.Errorf("failed to cache oauth token: %w", err)
		}
	}

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(config.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail client: %w", err)
	}

	return &GmailHandler{
		service: srv,
		files:   files,
		logger:  logger,
	}, nil
}

func tokenFromWeb(ctx context.Context, config *oauth2.Config, in io.Reader, out io.Writer) (*oauth2.Token, error) {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintf(out, "Go to the following link in your browser then type the authorization code:\n%v\n", authURL)

	authCode, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unable to read authorization code: %w", err)
	}
	authCode = strings.TrimSpace(authCode)
	if authCode == "" {
		return nil, errors.New("authorization code is required")
	}

	tok, err := config.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	return tok, nil
}

// TokenStore keeps the OAuth token in the OS keychain, falling back to a file
type TokenStore struct {
	Dir    string
	logger *zap.Logger
}

func (s *TokenStore) log() *zap.Logger {
	if s.logger == nil {
		return zap.NewNop()
	}
	return s.logger
}

func (s *TokenStore) path() string {
	dir := s.Dir
	if dir == "" {
		dir, _ = os.UserHomeDir()
	}
	return filepath.Join(dir, tokenFileName)
}

// Save stores the token, removing any file copy once the keychain accepts it
func (s *TokenStore) Save(tok *oauth2.Token) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	if err := keyring.Set(keyringService, keyringUser, string(b)); err != nil {
		s.log().Warn("keychain unavailable, falling back to file", zap.Error(err))
		return os.WriteFile(s.path(), b, 0600)
	}

	os.Remove(s.path())
	return nil
}

// Load returns the cached token, migrating a file copy into the keychain when possible
func (s *TokenStore) Load() (*oauth2.Token, error) {
	if v, err := keyring.Get(keyringService, keyringUser); err == nil && v != "" {
		return decodeToken([]byte(v))
	}

	b, err := os.ReadFile(s.path())
	if err != nil {
		return nil, fmt.Errorf("reading token file %s: %w", s.path(), err)
	}
	tok, err := decodeToken(b)
	if err != nil {
		return nil, err
	}

	if err := keyring.Set(keyringService, keyringUser, string(b)); err == nil {
		s.log().Info("migrated gmail token from file to OS keychain")
		os.Remove(s.path())
	}
	return tok, nil
}

func decodeToken(b []byte) (*oauth2.Token, error) {
	tok := &oauth2.Token{}
	if err := json.Unmarshal(b, tok); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return tok, nil
}

// FetchResumes downloads plain-text attachments from messages with the given subject.
// Files are saved as "Sender_CV.ext"; binary attachments are skipped.
func (gh *GmailHandler) FetchResumes(ctx context.Context, subject string) ([]string, error) {
	user := "me"
	query := fmt.Sprintf("subject:%s has:attachment", subject)

	r, err := gh.service.Users.Messages.List(user).Q(query).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve messages: %w", err)
	}

	if len(r.Messages) == 0 {
		return nil, fmt.Errorf("no messages found with subject: %s", subject)
	}

	var saved []string
	for _, msg := range r.Messages {
		message, err := gh.service.Users.Messages.Get(user, msg.Id).Context(ctx).Do()
		if err != nil {
			gh.logger.Warn("unable to retrieve message", zap.String("id", msg.Id), zap.Error(err))
			continue
		}

		sender := extractSenderName(message)
		for _, part := range attachmentParts(message.Payload) {
			if !SupportedExtension(part.Filename) {
				gh.logger.Info("skipping non-text attachment",
					zap.String("sender", sender), zap.String("file", part.Filename))
				continue
			}

			attachment, err := gh.service.Users.Messages.Attachments.Get(user, msg.Id, part.Body.AttachmentId).Context(ctx).Do()
			if err != nil {
				gh.logger.Warn("unable to retrieve attachment", zap.String("file", part.Filename), zap.Error(err))
				continue
			}

			data, err := base64.URLEncoding.DecodeString(attachment.Data)
			if err != nil {
				gh.logger.Warn("unable to decode attachment", zap.String("file", part.Filename), zap.Error(err))
				continue
			}

			filename := fmt.Sprintf("%s_CV%s", sender, strings.ToLower(filepath.Ext(part.Filename)))
			path, err := gh.files.SaveUploadedFile(filename, strings.NewReader(string(data)))
			if err != nil {
				gh.logger.Warn("unable to save attachment", zap.String("file", filename), zap.Error(err))
				continue
			}

			gh.logger.Info("downloaded resume", zap.String("file", filename))
			saved = append(saved, path)
		}
	}

	return saved, nil
}

// attachmentParts walks nested multipart payloads
func attachmentParts(part *gmail.MessagePart) []*gmail.MessagePart {
	if part == nil {
		return nil
	}
	var out []*gmail.MessagePart
	if part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "" {
		out = append(out, part)
	}
	for _, p := range part.Parts {
		out = append(out, attachmentParts(p)...)
	}
	return out
}

// extractSenderName extracts the sender's name from email headers
func extractSenderName(message *gmail.Message) string {
	if message.Payload == nil {
		return "Unknown"
	}
	for _, header := range message.Payload.Headers {
		if header.Name == "From" {
			// "Name <email@example.com>"
			from := strings.TrimSpace(header.Value)
			if idx := strings.Index(from, "<"); idx > 0 {
				name := strings.Trim(strings.TrimSpace(from[:idx]), `"`)
				return strings.Join(strings.Fields(name), "_")
			}
			if idx := strings.Index(from, "@"); idx > 0 {
				return strings.TrimPrefix(from[:idx], "<")
			}
			return "Unknown"
		}
	}
	return "Unknown"
}
