package test

import (
	"context"
	"fmt"
	"strings"
	"sync"

	lib "sagekit/lib/sagemaker"
)

// FakePlatform is an in-memory lib.Platform. Jobs complete when waited on,
// endpoints come up when waited on, and every call is recorded in Calls.
type FakePlatform struct {
	lock sync.Mutex

	Calls            []string
	TrainingRequests []lib.TrainingJobRequest
	TransformRequest []lib.TransformJobRequest
	Invocations      []lib.InvokeRequest

	TrainingJobs    map[string]lib.TrainingJobDescription
	TransformJobs   map[string]lib.TransformJobDescription
	Models          map[string]lib.Model
	EndpointConfigs map[string]lib.EndpointConfig
	Endpoints       map[string]lib.Endpoint

	// FailJobs maps a training or transform job name to the failure reason
	// it reports once waited on.
	FailJobs map[string]string
	// Errors makes the named operation, e.g. "CreateTrainingJob", fail.
	Errors map[string]error
	// InvokeHandler answers Invoke; by default the request body is echoed.
	InvokeHandler func(lib.InvokeRequest) (lib.InvokeResponse, error)
}

var _ lib.Platform = (*FakePlatform)(nil)

func NewFakePlatform() *FakePlatform {
	return &FakePlatform{
		TrainingJobs:    map[string]lib.TrainingJobDescription{},
		TransformJobs:   map[string]lib.TransformJobDescription{},
		Models:          map[string]lib.Model{},
		EndpointConfigs: map[string]lib.EndpointConfig{},
		Endpoints:       map[string]lib.Endpoint{},
		FailJobs:        map[string]string{},
		Errors:          map[string]error{},
	}
}

// call records op and returns the injected error for it, if any.
func (f *FakePlatform) call(op, name string) error {
	f.Calls = append(f.Calls, fmt.Sprintf("%s %s", op, name))
	if err, ok := f.Errors[op]; ok {
		return &lib.TransportError{Op: op, Err: err}
	}
	return nil
}

func notFound(op, kind, name string) error {
	return &lib.TransportError{Op: op, Err: fmt.Errorf("could not find %s %q", kind, name)}
}

// alreadyExists mirrors the control plane, which rejects a second create of
// the same name.
func alreadyExists(op, kind, name string) error {
	return &lib.TransportError{Op: op, Err: fmt.Errorf("cannot create already existing %s %q", kind, name)}
}

// CallsTo returns the recorded calls of op, in order.
func (f *FakePlatform) CallsTo(op string) []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	var ret []string
	for _, c := range f.Calls {
		if strings.HasPrefix(c, op+" ") {
			ret = append(ret, strings.TrimPrefix(c, op+" "))
		}
	}
	return ret
}

func (f *FakePlatform) CreateTrainingJob(_ context.Context, req lib.TrainingJobRequest) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("CreateTrainingJob", req.Name); err != nil {
		return err
	}
	if _, ok := f.TrainingJobs[req.Name]; ok {
		return &lib.TransportError{Op: "CreateTrainingJob", Err: fmt.Errorf("job %s already exists", req.Name)}
	}
	f.TrainingRequests = append(f.TrainingRequests, req)
	f.TrainingJobs[req.Name] = lib.TrainingJobDescription{
		Name:            req.Name,
		Image:           req.Image,
		Role:            req.Role,
		Status:          lib.JobInProgress,
		HyperParameters: req.HyperParameters,
		Resources:       req.Resources,
		Inputs:          req.Inputs,
		OutputPath:      req.OutputPath,
		MaxRuntime:      req.MaxRuntime,
	}
	return nil
}

func (f *FakePlatform) DescribeTrainingJob(_ context.Context, name string) (lib.TrainingJobDescription, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("DescribeTrainingJob", name); err != nil {
		return lib.TrainingJobDescription{}, err
	}
	desc, ok := f.TrainingJobs[name]
	if !ok {
		return desc, notFound("DescribeTrainingJob", "training job", name)
	}
	return desc, nil
}

func (f *FakePlatform) WaitForTrainingJob(_ context.Context, name string) (lib.TrainingJobDescription, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("WaitForTrainingJob", name); err != nil {
		return lib.TrainingJobDescription{}, err
	}
	desc, ok := f.TrainingJobs[name]
	if !ok {
		return desc, notFound("WaitForTrainingJob", "training job", name)
	}
	if desc.Status == lib.JobInProgress {
		if reason, failed := f.FailJobs[name]; failed {
			desc.Status = lib.JobFailed
			desc.FailureReason = reason
		} else {
			desc.Status = lib.JobCompleted
			desc.ArtifactURI = strings.TrimSuffix(desc.OutputPath, "/") + "/" + name + "/output/model.tar.gz"
		}
		f.TrainingJobs[name] = desc
	}
	if desc.Status == lib.JobFailed {
		return desc, &lib.JobFailedError{Name: name, Status: string(desc.Status), Reason: desc.FailureReason}
	}
	return desc, nil
}

func (f *FakePlatform) StopTrainingJob(_ context.Context, name string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("StopTrainingJob", name); err != nil {
		return err
	}
	desc, ok := f.TrainingJobs[name]
	if !ok {
		return notFound("StopTrainingJob", "training job", name)
	}
	if !desc.Status.Terminal() {
		desc.Status = lib.JobStopped
		f.TrainingJobs[name] = desc
	}
	return nil
}

// AddTrainingJob registers a job that was created outside of the fake, as
// when attaching to an existing job.
func (f *FakePlatform) AddTrainingJob(desc lib.TrainingJobDescription) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.TrainingJobs[desc.Name] = desc
}

func (f *FakePlatform) CreateTransformJob(_ context.Context, req lib.TransformJobRequest) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("CreateTransformJob", req.Name); err != nil {
		return err
	}
	if _, ok := f.Models[req.ModelName]; !ok {
		return notFound("CreateTransformJob", "model", req.ModelName)
	}
	f.TransformRequest = append(f.TransformRequest, req)
	f.TransformJobs[req.Name] = lib.TransformJobDescription{
		Name:       req.Name,
		ModelName:  req.ModelName,
		Status:     lib.JobInProgress,
		OutputPath: req.OutputPath,
	}
	return nil
}

func (f *FakePlatform) DescribeTransformJob(_ context.Context, name string) (lib.TransformJobDescription, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("DescribeTransformJob", name); err != nil {
		return lib.TransformJobDescription{}, err
	}
	desc, ok := f.TransformJobs[name]
	if !ok {
		return desc, notFound("DescribeTransformJob", "transform job", name)
	}
	return desc, nil
}

func (f *FakePlatform) WaitForTransformJob(_ context.Context, name string) (lib.TransformJobDescription, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("WaitForTransformJob", name); err != nil {
		return lib.TransformJobDescription{}, err
	}
	desc, ok := f.TransformJobs[name]
	if !ok {
		return desc, notFound("WaitForTransformJob", "transform job", name)
	}
	if desc.Status == lib.JobInProgress {
		if reason, failed := f.FailJobs[name]; failed {
			desc.Status = lib.JobFailed
			desc.FailureReason = reason
		} else {
			desc.Status = lib.JobCompleted
		}
		f.TransformJobs[name] = desc
	}
	if desc.Status == lib.JobFailed {
		return desc, &lib.JobFailedError{Name: name, Status: string(desc.Status), Reason: desc.FailureReason}
	}
	return desc, nil
}

func (f *FakePlatform) CreateModel(_ context.Context, model lib.Model) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("CreateModel", model.Name); err != nil {
		return err
	}
	if _, ok := f.Models[model.Name]; ok {
		return alreadyExists("CreateModel", "model", model.Name)
	}
	f.Models[model.Name] = model
	return nil
}

func (f *FakePlatform) CreateEndpointConfig(_ context.Context, cfg lib.EndpointConfig) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("CreateEndpointConfig", cfg.Name); err != nil {
		return err
	}
	if _, ok := f.EndpointConfigs[cfg.Name]; ok {
		return alreadyExists("CreateEndpointConfig", "endpoint configuration", cfg.Name)
	}
	if _, ok := f.Models[cfg.ModelName]; !ok {
		return notFound("CreateEndpointConfig", "model", cfg.ModelName)
	}
	f.EndpointConfigs[cfg.Name] = cfg
	return nil
}

func (f *FakePlatform) CreateEndpoint(_ context.Context, endpoint lib.Endpoint) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("CreateEndpoint", endpoint.Name); err != nil {
		return err
	}
	if _, ok := f.Endpoints[endpoint.Name]; ok {
		return alreadyExists("CreateEndpoint", "endpoint", endpoint.Name)
	}
	if _, ok := f.EndpointConfigs[endpoint.EndpointConfigName]; !ok {
		return notFound("CreateEndpoint", "endpoint config", endpoint.EndpointConfigName)
	}
	endpoint.Status = "Creating"
	f.Endpoints[endpoint.Name] = endpoint
	return nil
}

func (f *FakePlatform) WaitForEndpoint(_ context.Context, name string) (lib.Endpoint, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("WaitForEndpoint", name); err != nil {
		return lib.Endpoint{}, err
	}
	endpoint, ok := f.Endpoints[name]
	if !ok {
		return endpoint, notFound("WaitForEndpoint", "endpoint", name)
	}
	endpoint.Status = "InService"
	f.Endpoints[name] = endpoint
	return endpoint, nil
}

func (f *FakePlatform) EndpointExists(_ context.Context, name string) (bool, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("EndpointExists", name); err != nil {
		return false, err
	}
	_, ok := f.Endpoints[name]
	return ok, nil
}

func (f *FakePlatform) ModelExists(_ context.Context, name string) (bool, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("ModelExists", name); err != nil {
		return false, err
	}
	_, ok := f.Models[name]
	return ok, nil
}

func (f *FakePlatform) EndpointConfigExists(_ context.Context, name string) (bool, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("EndpointConfigExists", name); err != nil {
		return false, err
	}
	_, ok := f.EndpointConfigs[name]
	return ok, nil
}

func (f *FakePlatform) DeleteModel(_ context.Context, name string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("DeleteModel", name); err != nil {
		return err
	}
	delete(f.Models, name)
	return nil
}

func (f *FakePlatform) DeleteEndpointConfig(_ context.Context, name string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("DeleteEndpointConfig", name); err != nil {
		return err
	}
	if _, ok := f.EndpointConfigs[name]; !ok {
		return notFound("DeleteEndpointConfig", "endpoint config", name)
	}
	delete(f.EndpointConfigs, name)
	return nil
}

func (f *FakePlatform) DeleteEndpoint(_ context.Context, name string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("DeleteEndpoint", name); err != nil {
		return err
	}
	if _, ok := f.Endpoints[name]; !ok {
		return notFound("DeleteEndpoint", "endpoint", name)
	}
	delete(f.Endpoints, name)
	return nil
}

func (f *FakePlatform) Invoke(_ context.Context, req lib.InvokeRequest) (lib.InvokeResponse, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.call("Invoke", req.EndpointName); err != nil {
		return lib.InvokeResponse{}, err
	}
	endpoint, ok := f.Endpoints[req.EndpointName]
	if !ok || endpoint.Status != "InService" {
		return lib.InvokeResponse{}, notFound("Invoke", "endpoint", req.EndpointName)
	}
	f.Invocations = append(f.Invocations, req)
	if f.InvokeHandler != nil {
		return f.InvokeHandler(req)
	}
	return lib.InvokeResponse{ContentType: req.ContentType, Body: req.Body}, nil
}
