package estimator

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samber/mo"
	"go.uber.org/zap"

	"sagekit/lib/hyperparam"
	lib "sagekit/lib/sagemaker"
	"sagekit/s3"
	"sagekit/session"
)

const (
	DefaultTensorFlowVersion = "1.11.0"
	DefaultPyVersion         = "py2"

	tensorflowImageBase = "sagemaker-tensorflow"
	sourceArchive       = "sourcedir.tar.gz"
	// logging.INFO of the container's python logger
	containerLogLevel = 20
)

// Hyperparameters the framework containers read to locate and run the user
// script. They are set by Fit and may not be passed by the user.
const (
	hpProgram       = "sagemaker_program"
	hpSubmitDir     = "sagemaker_submit_directory"
	hpRegion        = "sagemaker_region"
	hpJobName       = "sagemaker_job_name"
	hpLogLevel      = "sagemaker_container_log_level"
	hpCheckpointDir = "checkpoint_path"
)

type TensorFlowConfig struct {
	Config
	// EntryPoint is the script run by the container. When SourceDir is set it
	// is relative to SourceDir and the whole directory is packaged.
	EntryPoint       string
	SourceDir        string
	FrameworkVersion string
	PyVersion        string
	TrainingSteps    mo.Option[int]
	EvaluationSteps  mo.Option[int]
	// HyperParameters are passed to the script JSON-encoded.
	HyperParameters map[string]interface{}
}

// TensorFlow trains a user script in the TensorFlow framework container.
type TensorFlow struct {
	*Estimator
	tf        TensorFlowConfig
	submitDir string
}

func tensorflowSpecs() []hyperparam.Spec {
	return []hyperparam.Spec{
		hyperparam.Int("training_steps", "number of training steps", hyperparam.IntLowerBound(0, false)),
		hyperparam.Int("evaluation_steps", "number of evaluation steps", hyperparam.IntLowerBound(0, false)),
	}
}

func reservedHyperParameter(name string) bool {
	switch name {
	case hpProgram, hpSubmitDir, hpRegion, hpJobName, hpLogLevel, hpCheckpointDir, "training_steps", "evaluation_steps":
		return true
	}
	return strings.HasPrefix(name, "sagemaker_")
}

func NewTensorFlow(sess session.Session, config TensorFlowConfig) (*TensorFlow, error) {
	if config.EntryPoint == "" {
		return nil, &hyperparam.ValidationError{Field: "entry_point", Value: config.EntryPoint, Constraint: "non-empty", Err: hyperparam.ErrInvalid}
	}
	for name := range config.HyperParameters {
		if reservedHyperParameter(name) {
			return nil, &hyperparam.ValidationError{Field: name, Value: config.HyperParameters[name], Constraint: "not reserved", Err: hyperparam.ErrInvalid}
		}
	}
	return newTensorFlow(sess, config)
}

func newTensorFlow(sess session.Session, config TensorFlowConfig) (*TensorFlow, error) {
	if config.FrameworkVersion == "" {
		config.FrameworkVersion = DefaultTensorFlowVersion
	}
	if config.PyVersion == "" {
		config.PyVersion = DefaultPyVersion
	}
	t := &TensorFlow{tf: config}
	e, err := newEstimator(sess, config.Config, hyperparam.NewSet(tensorflowSpecs()...), func() (string, error) {
		return t.image(config.InstanceType)
	})
	if err != nil {
		return nil, err
	}
	if err := setOption(e.hyperParameters, "training_steps", config.TrainingSteps); err != nil {
		return nil, err
	}
	if err := setOption(e.hyperParameters, "evaluation_steps", config.EvaluationSteps); err != nil {
		return nil, err
	}
	e.hostingImage = t.image
	e.hostingEnv = t.hostingEnv
	t.Estimator = e
	return t, nil
}

func (t *TensorFlow) image(instanceType string) (string, error) {
	return lib.FrameworkImage(t.sess.Region, "tensorflow", t.tf.FrameworkVersion, instanceType, t.tf.PyVersion)
}

func (t *TensorFlow) program() string {
	return filepath.Base(t.tf.EntryPoint)
}

func (t *TensorFlow) hostingEnv() map[string]string {
	return map[string]string{
		"SAGEMAKER_PROGRAM":                   t.program(),
		"SAGEMAKER_SUBMIT_DIRECTORY":          t.submitDir,
		"SAGEMAKER_REGION":                    t.sess.Region,
		"SAGEMAKER_CONTAINER_LOG_LEVEL":       strconv.Itoa(containerLogLevel),
		"SAGEMAKER_ENABLE_CLOUDWATCH_METRICS": "false",
	}
}

func (t *TensorFlow) FrameworkVersion() string {
	return t.tf.FrameworkVersion
}

func (t *TensorFlow) EntryPoint() string {
	return t.tf.EntryPoint
}

// Fit packages and uploads the training script, then starts a job reading
// the "training" channel from inputs, an object storage prefix.
func (t *TensorFlow) Fit(ctx context.Context, inputs string) (*TrainingJob, error) {
	if _, _, err := s3.ParseURI(inputs); err != nil {
		return nil, err
	}
	name, err := t.jobName()
	if err != nil {
		return nil, err
	}
	submitDir, err := t.uploadSource(ctx, name)
	if err != nil {
		return nil, err
	}
	extra, err := t.frameworkHyperParameters(name, submitDir)
	if err != nil {
		return nil, err
	}
	channel := lib.Channel{
		Name:         "training",
		S3URI:        inputs,
		S3DataType:   lib.S3Prefix,
		Distribution: lib.FullyReplicated,
	}
	job, err := t.submit(ctx, name, t.hyperParameters.Clone(), extra, []lib.Channel{channel})
	if err != nil {
		return nil, err
	}
	t.submitDir = submitDir
	return job, nil
}

func (t *TensorFlow) frameworkHyperParameters(jobName, submitDir string) (map[string]string, error) {
	values := map[string]interface{}{
		hpProgram:       t.program(),
		hpSubmitDir:     submitDir,
		hpRegion:        t.sess.Region,
		hpJobName:       jobName,
		hpLogLevel:      containerLogLevel,
		hpCheckpointDir: strings.TrimSuffix(t.outputPath(), "/") + "/" + jobName + "/checkpoints",
	}
	for k, v := range t.tf.HyperParameters {
		values[k] = v
	}
	ret := make(map[string]string, len(values))
	for k, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode hyperparameter %s: %w", k, err)
		}
		ret[k] = string(raw)
	}
	return ret, nil
}

// uploadSource writes the packaged script to
// s3://<default bucket>/<job>/source/sourcedir.tar.gz.
func (t *TensorFlow) uploadSource(ctx context.Context, jobName string) (string, error) {
	archive, err := packSource(t.tf.EntryPoint, t.tf.SourceDir)
	if err != nil {
		return "", err
	}
	key := jobName + "/source/" + sourceArchive
	if err := t.sess.Storage.Upload(ctx, bytes.NewReader(archive), t.sess.DefaultBucket, key); err != nil {
		return "", fmt.Errorf("failed to upload source: %w", err)
	}
	uri := s3.URI(t.sess.DefaultBucket, key)
	t.sess.Logger.Info("uploaded training script", zap.String("uri", uri), zap.Int("bytes", len(archive)))
	return uri, nil
}

// packSource returns a gzipped tarball of sourceDir, or of entryPoint alone
// when sourceDir is empty. Entries are named relative to the packaged root.
func packSource(entryPoint, sourceDir string) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	if sourceDir == "" {
		info, err := os.Stat(entryPoint)
		if err != nil {
			return nil, err
		}
		if err := tarFile(tw, entryPoint, filepath.Base(entryPoint), info); err != nil {
			return nil, err
		}
	} else {
		if _, err := os.Stat(filepath.Join(sourceDir, entryPoint)); err != nil {
			return nil, fmt.Errorf("entry point not in source dir: %w", err)
		}
		err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(sourceDir, path)
			if err != nil {
				return err
			}
			return tarFile(tw, path, filepath.ToSlash(rel), info)
		})
		if err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func tarFile(tw *tar.Writer, path, name string, info fs.FileInfo) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = name
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

// AttachTensorFlow rebuilds a TensorFlow estimator from the training job
// jobName, recovering the script location and framework version from the
// job's hyperparameters and image.
func AttachTensorFlow(ctx context.Context, sess session.Session, jobName string) (*TensorFlow, error) {
	desc, err := attach(ctx, sess, jobName)
	if err != nil {
		return nil, err
	}
	if base := lib.BaseNameFromImage(desc.Image); base != tensorflowImageBase {
		return nil, &lib.IllegalStateError{
			Op:     "attach",
			Reason: fmt.Sprintf("training job %s ran %s, not %s", jobName, base, tensorflowImageBase),
		}
	}
	config := TensorFlowConfig{Config: configFromJob(desc), HyperParameters: map[string]interface{}{}}
	config.FrameworkVersion, config.PyVersion = parseFrameworkTag(desc.Image)

	var submitDir string
	for k, raw := range desc.HyperParameters {
		switch {
		case k == "training_steps" || k == "evaluation_steps":
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("failed to attach to %s: %s=%q: %w", jobName, k, raw, hyperparam.ErrWrongType)
			}
			if k == "training_steps" {
				config.TrainingSteps = mo.Some(n)
			} else {
				config.EvaluationSteps = mo.Some(n)
			}
		case k == hpProgram:
			config.EntryPoint = decodeJSONString(raw)
		case k == hpSubmitDir:
			submitDir = decodeJSONString(raw)
		case reservedHyperParameter(k) || strings.HasPrefix(k, "_"):
		default:
			var v interface{}
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				v = raw
			}
			config.HyperParameters[k] = v
		}
	}
	t, err := newTensorFlow(sess, config)
	if err != nil {
		return nil, err
	}
	t.submitDir = submitDir
	t.bindJob(jobName)
	return t, nil
}

func decodeJSONString(raw string) string {
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return raw
	}
	return s
}

// parseFrameworkTag splits an image tag such as 1.11.0-cpu-py2 into the
// framework and python versions.
func parseFrameworkTag(image string) (string, string) {
	i := strings.LastIndex(image, ":")
	if i < 0 {
		return DefaultTensorFlowVersion, DefaultPyVersion
	}
	parts := strings.Split(image[i+1:], "-")
	if len(parts) != 3 {
		return DefaultTensorFlowVersion, DefaultPyVersion
	}
	return parts[0], parts[2]
}
