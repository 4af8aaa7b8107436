package secretstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	dserrors "github.com/notorios/meli-token-manager/internal/errors"
	"github.com/notorios/meli-token-manager/internal/logging"
	"github.com/notorios/meli-token-manager/internal/token"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// callTimeout bounds every Secret Manager RPC so a hung call becomes a failed
// tick instead of a stuck loop.
const callTimeout = 15 * time.Second

// GCP stores the credential record as versions of one Secret Manager secret.
type GCP struct {
	client     *secretmanager.Client
	projectID  string
	secretName string
	logger     *logging.Logger
}

// NewGCP connects to Secret Manager using application-default credentials, or
// the key file named by GOOGLE_APPLICATION_CREDENTIALS when set.
func NewGCP(ctx context.Context, projectID, secretName string, logger *logging.Logger) (*GCP, error) {
	if projectID == "" {
		return nil, dserrors.ConfigError{
			Key:        "GCP_PROJECT_ID",
			Message:    "project id is required to talk to Secret Manager",
			Suggestion: "Set GCP_PROJECT_ID or pass --project-id",
		}
	}

	var clientOptions []option.ClientOption
	if keyPath := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); keyPath != "" {
		if strings.HasPrefix(keyPath, "~/") {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to resolve home directory: %w", err)
			}
			keyPath = filepath.Join(home, keyPath[2:])
		}
		clientOptions = append(clientOptions, option.WithCredentialsFile(keyPath))
	}

	client, err := secretmanager.NewClient(ctx, clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}

	return &GCP{
		client:     client,
		projectID:  projectID,
		secretName: secretName,
		logger:     logger,
	}, nil
}

// Name identifies the store in logs.
func (g *GCP) Name() string {
	return "gcp"
}

// Close releases the underlying client connection.
func (g *GCP) Close() error {
	return g.client.Close()
}

func (g *GCP) secretPath() string {
	return fmt.Sprintf("projects/%s/secrets/%s", g.projectID, g.secretName)
}

// ReadLatest returns the record stored in the latest enabled secret version.
func (g *GCP) ReadLatest(ctx context.Context) (token.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	g.logger.Debug("accessing secret %s", logging.Secret(g.secretPath()))
	resp, err := g.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: g.secretPath() + "/versions/latest",
	})
	if err != nil {
		return token.Record{}, &dserrors.StoreError{Op: "read", Secret: g.secretName, Err: mapRPCError(err)}
	}
	if resp.Payload == nil || len(resp.Payload.Data) == 0 {
		return token.Record{}, &dserrors.StoreError{Op: "read", Secret: g.secretName, Err: fmt.Errorf("secret version has no payload")}
	}

	rec, err := token.Unmarshal(resp.Payload.Data)
	if err != nil {
		return token.Record{}, &dserrors.StoreError{Op: "read", Secret: g.secretName, Err: err}
	}
	return rec, nil
}

// EnsureSecret creates the secret container with automatic replication if it
// does not exist yet. Safe to call repeatedly.
func (g *GCP) EnsureSecret(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	_, err := g.client.GetSecret(ctx, &secretmanagerpb.GetSecretRequest{Name: g.secretPath()})
	if err == nil {
		return nil
	}
	if status.Code(err) != codes.NotFound {
		return &dserrors.StoreError{Op: "ensure", Secret: g.secretName, Err: mapRPCError(err)}
	}

	_, err = g.client.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
		Parent:   "projects/" + g.projectID,
		SecretId: g.secretName,
		Secret: &secretmanagerpb.Secret{
			Replication: &secretmanagerpb.Replication{
				Replication: &secretmanagerpb.Replication_Automatic_{
					Automatic: &secretmanagerpb.Replication_Automatic{},
				},
			},
		},
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return &dserrors.StoreError{Op: "ensure", Secret: g.secretName, Err: mapRPCError(err)}
	}
	return nil
}

// AddVersion appends the record as a new secret version, then disables prior
// enabled versions so a consumer pinned to an old version cannot read a stale
// token. The disable pass is best effort.
func (g *GCP) AddVersion(ctx context.Context, rec token.Record) error {
	data, err := rec.Marshal()
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := g.client.AddSecretVersion(callCtx, &secretmanagerpb.AddSecretVersionRequest{
		Parent:  g.secretPath(),
		Payload: &secretmanagerpb.SecretPayload{Data: data},
	})
	if err != nil {
		return &dserrors.StoreError{Op: "add-version", Secret: g.secretName, Err: mapRPCError(err)}
	}

	g.disablePriorVersions(ctx, resp.Name)
	return nil
}

// disablePriorVersions disables every enabled version other than keep.
// Failures are logged and ignored: the new version is already live.
func (g *GCP) disablePriorVersions(ctx context.Context, keep string) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	it := g.client.ListSecretVersions(ctx, &secretmanagerpb.ListSecretVersionsRequest{
		Parent: g.secretPath(),
	})
	for {
		version, err := it.Next()
		if err == iterator.Done {
			return
		}
		if err != nil {
			g.logger.Warn("failed to list versions of %s: %v", logging.Secret(g.secretName), err)
			return
		}
		if version.Name == keep || version.State != secretmanagerpb.SecretVersion_ENABLED {
			continue
		}
		_, err = g.client.DisableSecretVersion(ctx, &secretmanagerpb.DisableSecretVersionRequest{
			Name: version.Name,
		})
		if err != nil {
			g.logger.Warn("failed to disable prior version %s: %v", logging.Secret(version.Name), err)
		}
	}
}

// mapRPCError folds gRPC status codes into the store sentinel errors.
func mapRPCError(err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", dserrors.ErrSecretNotFound, err)
	case codes.PermissionDenied, codes.Unauthenticated:
		return fmt.Errorf("%w: %v", dserrors.ErrSecretPermissionDenied, err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return fmt.Errorf("%w: %v", dserrors.ErrSecretUnavailable, err)
	default:
		return err
	}
}
