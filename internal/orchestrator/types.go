package orchestrator

// FunctionSpec is the caller-provided function definition. It is treated as
// immutable once Init begins; derived values live on a separate resolvedSpec
// built per call (see resolveSpec below), never mutating this struct in place.
type FunctionSpec struct {
	Name          string            `json:"name" binding:"required"`
	Image         string            `json:"image" binding:"required"`
	Script        string            `json:"script"`
	EnvVars       map[string]string `json:"envVars"`
	Labels        map[string]string `json:"labels"`
	Annotations   map[string]string `json:"annotations"`
	DeleteBuckets bool              `json:"deleteBuckets"`

	// Fields present in later FDL schemas, dropped by earlier distillations
	// but kept here since they enrich the FaaS registration without
	// contradicting any Non-goal.
	Memory   string `json:"memory,omitempty"`
	CPU      string `json:"cpu,omitempty"`
	LogLevel string `json:"log_level,omitempty"`
	Replicas int    `json:"replicas,omitempty"`
}

// resolvedSpec is the mutable working copy the background init task builds
// up: overwritten image tag, merged env vars, and the generated object-store
// provider id. It is built once per Init call from a deep copy of the
// caller's FunctionSpec.
type resolvedSpec struct {
	FunctionSpec
	ObjectStoreProviderID string
}

func resolveSpec(spec FunctionSpec) resolvedSpec {
	envVars := make(map[string]string, len(spec.EnvVars))
	for k, v := range spec.EnvVars {
		envVars[k] = v
	}
	labels := make(map[string]string, len(spec.Labels))
	for k, v := range spec.Labels {
		labels[k] = v
	}
	annotations := make(map[string]string, len(spec.Annotations))
	for k, v := range spec.Annotations {
		annotations[k] = v
	}

	copied := spec
	copied.EnvVars = envVars
	copied.Labels = labels
	copied.Annotations = annotations
	return resolvedSpec{FunctionSpec: copied}
}
