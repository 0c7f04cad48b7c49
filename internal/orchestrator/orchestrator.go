// Package orchestrator is the function lifecycle state machine: init, rm,
// processEvent, invoke, ls. It owns the cluster, builder, object-store,
// filesystem, and FaaS collaborators and sequences them, returning an early
// acknowledgement for init while the heavy lifting runs in a detached
// goroutine.
package orchestrator

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/grycap/oscard/internal/builder"
	"github.com/grycap/oscard/internal/cluster"
	"github.com/grycap/oscard/internal/faas"
	"github.com/grycap/oscard/internal/filesystem"
	"github.com/grycap/oscard/internal/objectstore"
)

// faasFunctionNamespace is where the FaaS runtime's own Deployments land,
// queried by getFunctionEnvironmentVariables when a caller omits envVars.
const faasFunctionNamespace = "openfaas-fn"

// Config carries the values the Orchestrator needs beyond its collaborators.
type Config struct {
	OnetriggerVersion string
	OpenfaasEndpoint  string
	InitTimeout       time.Duration
}

// Orchestrator sequences BuilderClient, ObjectStoreClient, FilesystemClient,
// and FaasClient around the per-name lock from locks.go.
type Orchestrator struct {
	cluster     *cluster.Client
	builder     *builder.Client
	objectstore *objectstore.Client
	filesystem  *filesystem.Client
	faas        *faas.Client
	locker      *Locker
	cfg         Config
	logger      *zap.Logger
}

func New(
	cl *cluster.Client,
	bld *builder.Client,
	obj *objectstore.Client,
	fs *filesystem.Client,
	fc *faas.Client,
	locker *Locker,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		cluster: cl, builder: bld, objectstore: obj, filesystem: fs,
		faas: fc, locker: locker, cfg: cfg, logger: logger,
	}
}

// InitResult is what the HTTP layer relays to the caller: either the
// controller's own "Initializing function" ack, or the upstream FaaS
// response forwarded verbatim on the idempotent-exists short-circuit.
type InitResult struct {
	StatusCode int
	Body       []byte
}

// Init implements spec step 1-2: check exists() for the idempotent
// short-circuit, otherwise claim the per-name lock, ack immediately, and
// run the remaining steps in a detached goroutine.
func (o *Orchestrator) Init(spec FunctionSpec) InitResult {
	ctx := context.Background()

	exists, resp, err := o.faas.Exists(ctx, spec.Name)
	if err != nil {
		o.logger.Error("exists check failed, proceeding with init", zap.String("name", spec.Name), zap.Error(err))
	} else if exists {
		return InitResult{StatusCode: resp.StatusCode, Body: resp.Body}
	}

	if !o.locker.Acquire(ctx, spec.Name) {
		return InitResult{
			StatusCode: http.StatusConflict,
			Body:       []byte(`{"status":"a build for this function is already in progress"}`),
		}
	}

	go o.runInitBackground(spec)

	return InitResult{StatusCode: http.StatusOK, Body: []byte(`{"status":"Initializing function"}`)}
}

func (o *Orchestrator) runInitBackground(spec FunctionSpec) {
	timeout := o.cfg.InitTimeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	defer o.locker.Release(context.Background(), spec.Name)

	logger := o.logger.With(zap.String("function", spec.Name))
	resolved := resolveSpec(spec)

	image, err := o.builder.Build(ctx, spec.Name, spec.Image, spec.Script)
	if err != nil {
		logger.Error("build failed, continuing with remaining steps", zap.Error(err))
	} else {
		resolved.Image = image
	}
	resolved.ObjectStoreProviderID = fmt.Sprintf("%d", rand.Intn(1_000_000))

	inputKey := "STORAGE_PATH_INPUT_" + resolved.ObjectStoreProviderID
	outputKey := "STORAGE_PATH_OUTPUT_" + resolved.ObjectStoreProviderID
	_, outputOverridden := resolved.EnvVars[outputKey]
	resolved.EnvVars[inputKey] = objectstore.InputBucket(spec.Name)
	if !outputOverridden {
		resolved.EnvVars[outputKey] = objectstore.OutputBucket(spec.Name)
	}

	if err := o.objectstore.CreateInputBucket(ctx, spec.Name); err != nil {
		logger.Error("create input bucket failed", zap.Error(err))
	}
	if err := o.objectstore.CreateOutputBucket(ctx, spec.Name, outputOverridden); err != nil {
		logger.Error("create output bucket failed", zap.Error(err))
	}

	if fsBinding, ok := detectFilesystemBinding(resolved.EnvVars); ok {
		o.provisionFilesystemBinding(ctx, logger, fsBinding, spec.Name)
	}

	faasSpec := faas.MergeDefaults(faas.Spec{
		Service:     spec.Name,
		Image:       resolved.Image,
		EnvVars:     resolved.EnvVars,
		Labels:      resolved.Labels,
		Annotations: resolved.Annotations,
		Replicas:    spec.Replicas,
		Memory:      spec.Memory,
		CPU:         spec.CPU,
	}, spec.Script)

	resp, err := o.faas.Create(ctx, faasSpec)
	if err != nil {
		logger.Error("register function failed", zap.Error(err))
		return
	}
	if resp.StatusCode >= 300 {
		logger.Error("register function rejected", zap.Int("status", resp.StatusCode), zap.ByteString("body", resp.Body))
	}
}

func (o *Orchestrator) provisionFilesystemBinding(ctx context.Context, logger *zap.Logger, fsBinding filesystem.Binding, name string) {
	connected, err := o.filesystem.CheckConnection(ctx, fsBinding)
	if err != nil {
		logger.Warn("filesystem binding unauthorized, disabling", zap.Error(err))
		return
	}
	if !connected {
		logger.Info("filesystem connection check failed, skipping binding")
		return
	}

	if err := o.filesystem.CreateInputFolder(ctx, fsBinding, name); err != nil {
		logger.Error("create input folder failed", zap.Error(err))
	}
	if err := o.filesystem.CreateOutputFolder(ctx, fsBinding, name); err != nil {
		logger.Error("create output folder failed", zap.Error(err))
	}
	if err := o.filesystem.DeployOnetrigger(ctx, o.cluster, fsBinding, name, o.cfg.OnetriggerVersion, o.cfg.OpenfaasEndpoint); err != nil {
		logger.Error("deploy onetrigger failed", zap.Error(err))
	}
}

// Rm implements spec §4.6 rm: best-effort teardown of buckets, the notifier
// deployment, folders, and the FaaS registration.
func (o *Orchestrator) Rm(ctx context.Context, spec FunctionSpec) (*faas.Response, error) {
	logger := o.logger.With(zap.String("function", spec.Name))

	envVars := spec.EnvVars
	if len(envVars) == 0 {
		envVars = o.getFunctionEnvironmentVariables(ctx, spec.Name)
	}

	if spec.DeleteBuckets {
		if err := o.objectstore.DeleteInputBucket(ctx, spec.Name); err != nil {
			logger.Info("delete input bucket failed, continuing teardown", zap.Error(err))
		}
		if err := o.objectstore.DeleteOutputBucket(ctx, spec.Name); err != nil {
			logger.Info("delete output bucket failed, continuing teardown", zap.Error(err))
		}
	}

	if fsBinding, ok := detectFilesystemBinding(envVars); ok {
		if err := o.filesystem.DeleteOnetriggerDeploy(ctx, o.cluster, spec.Name); err != nil {
			logger.Info("delete onetrigger deployment failed", zap.Error(err))
		}
		if spec.DeleteBuckets {
			if err := o.filesystem.DeleteFolder(ctx, fsBinding, spec.Name+"-in"); err != nil {
				logger.Info("delete input folder failed", zap.Error(err))
			}
			if err := o.filesystem.DeleteFolder(ctx, fsBinding, spec.Name+"-out"); err != nil {
				logger.Info("delete output folder failed", zap.Error(err))
			}
		}
	}

	return o.faas.Delete(ctx, spec.Name)
}

// getFunctionEnvironmentVariables fetches the live deployment's first
// container's env vars via ClusterClient when the caller omitted them,
// warning (at the cluster layer) if more than one container is found.
func (o *Orchestrator) getFunctionEnvironmentVariables(ctx context.Context, name string) map[string]string {
	envVars, err := o.cluster.GetDeploymentEnv(ctx, name, faasFunctionNamespace)
	if err != nil {
		o.logger.Warn("fetch live deployment env failed", zap.String("function", name), zap.Error(err))
		return nil
	}
	result := make(map[string]string, len(envVars))
	for _, e := range envVars {
		result[e.Name] = e.Value
	}
	return result
}

// Invoke is a thin pass-through to the FaaS runtime's invoke endpoint.
func (o *Orchestrator) Invoke(ctx context.Context, name string, body []byte, async bool) (*faas.Response, error) {
	return o.faas.Invoke(ctx, name, body, async)
}

// Ls is a thin pass-through to the FaaS runtime's function listing.
func (o *Orchestrator) Ls(ctx context.Context) (*faas.Response, error) {
	return o.faas.List(ctx)
}

// Get is a thin pass-through to the FaaS runtime's per-function metadata.
func (o *Orchestrator) Get(ctx context.Context, name string) (*faas.Response, error) {
	return o.faas.Get(ctx, name)
}
