// Package deployment loads the deployment map and contract ABI from a
// local file or an http(s) URL.
package deployment

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/fd1az/dapp-marketplace/business/marketplace/domain"
	"github.com/fd1az/dapp-marketplace/business/marketplace/infra/contract"
	"github.com/fd1az/dapp-marketplace/internal/apperror"
	"github.com/fd1az/dapp-marketplace/internal/cache"
	"github.com/fd1az/dapp-marketplace/internal/httpclient"
	"github.com/fd1az/dapp-marketplace/internal/logger"
)

const abiCacheTTL = time.Hour

// Loader reads deployment artifacts.
type Loader struct {
	client httpclient.Client
	logger logger.LoggerInterface
	abis   *cache.Cache[string, *abi.ABI]
}

// NewLoader creates a loader. client is only used for http(s) sources.
func NewLoader(client httpclient.Client, log logger.LoggerInterface) *Loader {
	return &Loader{
		client: client,
		logger: log,
		abis:   cache.New[string, *abi.ABI](abiCacheTTL),
	}
}

// Deployments reads a map of the form {"<chainId>": {"<Name>": ["0x..."]}}.
func (l *Loader) Deployments(ctx context.Context, source string) (domain.Deployments, error) {
	raw, err := l.read(ctx, source, "deployments")
	if err != nil {
		return nil, loadFailed(source, err)
	}

	var deployments domain.Deployments
	if err := json.Unmarshal(raw, &deployments); err != nil {
		return nil, loadFailed(source, fmt.Errorf("decode deployment map: %w", err))
	}

	l.logger.Info(ctx, "deployment map loaded",
		"source", source,
		"networks", len(deployments),
	)
	return deployments, nil
}

// ABI reads a contract ABI. Both a bare ABI array and a build artifact
// with an "abi" field are accepted. An empty source yields the embedded
// marketplace ABI.
func (l *Loader) ABI(ctx context.Context, source string) (*abi.ABI, error) {
	if source == "" {
		return contract.ParseMarketplaceABI()
	}
	if parsed, ok := l.abis.Get(ctx, source); ok {
		return parsed, nil
	}

	raw, err := l.read(ctx, source, "abi")
	if err != nil {
		return nil, loadFailed(source, err)
	}

	parsed, err := contract.ParseABI(string(extractABI(raw)))
	if err != nil {
		return nil, loadFailed(source, err)
	}

	l.abis.Set(ctx, source, parsed, 0)
	return parsed, nil
}

// Close stops the ABI cache.
func (l *Loader) Close() error {
	l.abis.Close()
	return nil
}

func (l *Loader) read(ctx context.Context, source, kind string) ([]byte, error) {
	if !isURL(source) {
		return os.ReadFile(source)
	}
	if l.client == nil {
		return nil, fmt.Errorf("no http client for %s", source)
	}

	resp, err := l.client.NewRequest(
		httpclient.WithResponseErrorHandler(httpclient.StatusErrorHandler),
		httpclient.WithLabels(httpclient.Label{Key: "artifact", Value: kind}),
	).Get(ctx, source)
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

func extractABI(raw []byte) []byte {
	var artifact struct {
		ABI json.RawMessage `json:"abi"`
	}
	if err := json.Unmarshal(raw, &artifact); err == nil && len(artifact.ABI) > 0 {
		return artifact.ABI
	}
	return raw
}

func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func loadFailed(source string, err error) *apperror.AppError {
	return apperror.New(apperror.CodeDeploymentLoadFailed,
		apperror.WithCause(err),
		apperror.WithContext(source))
}
