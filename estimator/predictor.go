package estimator

import (
	"context"

	"go.uber.org/zap"

	lib "sagekit/lib/sagemaker"
	"sagekit/lib/timer"
	"sagekit/session"
)

// Predictor sends requests to a live endpoint. Serializer and Deserializer
// may be replaced at any time.
type Predictor struct {
	sess         session.Session
	EndpointName string
	Serializer   Serializer
	Deserializer Deserializer
}

// NewPredictor attaches to an existing endpoint with JSON in both directions.
func NewPredictor(sess session.Session, endpointName string) *Predictor {
	return &Predictor{
		sess:         sess,
		EndpointName: endpointName,
		Serializer:   JSONSerializer{},
		Deserializer: JSONDeserializer{},
	}
}

// PredictRaw sends body as is.
func (p *Predictor) PredictRaw(ctx context.Context, body []byte, contentType, accept string) (lib.InvokeResponse, error) {
	t := timer.Start("estimator.predict")
	defer t.Stop()
	return p.sess.Platform.Invoke(ctx, lib.InvokeRequest{
		EndpointName: p.EndpointName,
		ContentType:  contentType,
		Accept:       accept,
		Body:         body,
	})
}

// Predict serializes data, invokes the endpoint and deserializes the
// response. Transport errors are returned unchanged.
func (p *Predictor) Predict(ctx context.Context, data interface{}) (interface{}, error) {
	body, err := p.Serializer.Serialize(data)
	if err != nil {
		return nil, err
	}
	resp, err := p.PredictRaw(ctx, body, p.Serializer.ContentType(), p.Deserializer.Accept())
	if err != nil {
		return nil, err
	}
	return p.Deserializer.Deserialize(resp.Body, resp.ContentType)
}

// Delete removes the endpoint and its config.
func (p *Predictor) Delete(ctx context.Context) error {
	if err := p.sess.Platform.DeleteEndpoint(ctx, p.EndpointName); err != nil {
		return err
	}
	if err := p.sess.Platform.DeleteEndpointConfig(ctx, p.EndpointName); err != nil {
		return err
	}
	p.sess.Logger.Info("deleted endpoint", zap.String("endpoint", p.EndpointName))
	deactivateEndpoint(p.sess, p.EndpointName)
	return nil
}
