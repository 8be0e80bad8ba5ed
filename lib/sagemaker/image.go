package sagemaker

import (
	"fmt"
	"strings"
)

const (
	DefaultAlgorithmVersion = "1"

	frameworkAccount    = "520713654638"
	govFrameworkAccount = "246785580436"
)

// Account ids hosting the first-party algorithm images, per region. These
// are platform contract data and must track the platform documentation.
var (
	firstPartyAccounts = map[string]string{
		"us-east-1":      "382416733822",
		"us-east-2":      "404615174143",
		"us-west-2":      "174872318107",
		"eu-west-1":      "438346466558",
		"eu-central-1":   "664544806723",
		"ap-northeast-1": "351501993468",
		"ap-northeast-2": "835164637446",
		"ap-southeast-2": "712309505854",
		"us-gov-west-1":  "226302683700",
		"ap-southeast-1": "475088953585",
		"ap-south-1":     "991648021394",
		"ca-central-1":   "469771592824",
		"eu-west-2":      "644912444149",
		"us-west-1":      "632365934929",
	}
	ldaAccounts = map[string]string{
		"us-east-1":      "766337827248",
		"us-east-2":      "999911452149",
		"us-west-2":      "266724342769",
		"eu-west-1":      "999678624901",
		"eu-central-1":   "353608530281",
		"ap-northeast-1": "258307448986",
		"ap-northeast-2": "293181348795",
		"ap-southeast-2": "297031611018",
		"us-gov-west-1":  "226302683700",
		"ap-southeast-1": "475088953585",
		"ap-south-1":     "991648021394",
		"ca-central-1":   "469771592824",
		"eu-west-2":      "644912444149",
		"us-west-1":      "632365934929",
	}
	deepARAccounts = map[string]string{
		"us-east-1":      "522234722520",
		"us-east-2":      "566113047672",
		"us-west-2":      "156387875391",
		"eu-west-1":      "224300973850",
		"eu-central-1":   "495149712605",
		"ap-northeast-1": "633353088612",
		"ap-northeast-2": "204372634319",
		"ap-southeast-2": "514117268639",
		"us-gov-west-1":  "226302683700",
		"ap-southeast-1": "475088953585",
		"ap-south-1":     "991648021394",
		"ca-central-1":   "469771592824",
		"eu-west-2":      "644912444149",
		"us-west-1":      "632365934929",
	}
	builtinAccounts = map[string]string{
		"us-east-1":      "811284229777",
		"us-east-2":      "825641698319",
		"us-west-2":      "433757028032",
		"eu-west-1":      "685385470294",
		"eu-central-1":   "813361260812",
		"ap-northeast-1": "501404015308",
		"ap-northeast-2": "306986355934",
		"ap-southeast-2": "544295431143",
		"us-gov-west-1":  "226302683700",
		"ap-southeast-1": "475088953585",
		"ap-south-1":     "991648021394",
		"ca-central-1":   "469771592824",
		"eu-west-2":      "644912444149",
		"us-west-1":      "632365934929",
	}
)

var accountsByAlgorithm = map[string]map[string]string{
	"pca":                    firstPartyAccounts,
	"kmeans":                 firstPartyAccounts,
	"linear-learner":         firstPartyAccounts,
	"factorization-machines": firstPartyAccounts,
	"ntm":                    firstPartyAccounts,
	"randomcutforest":        firstPartyAccounts,
	"knn":                    firstPartyAccounts,
	"object2vec":             firstPartyAccounts,
	"ipinsights":             firstPartyAccounts,
	"lda":                    ldaAccounts,
	"forecasting-deepar":     deepARAccounts,
	"xgboost":                builtinAccounts,
	"seq2seq":                builtinAccounts,
	"image-classification":   builtinAccounts,
	"blazingtext":            builtinAccounts,
	"object-detection":       builtinAccounts,
	"semantic-segmentation":  builtinAccounts,
}

// Registry returns the container registry host serving algorithm in region.
func Registry(region, algorithm string) (string, error) {
	accounts, ok := accountsByAlgorithm[algorithm]
	if !ok {
		return "", fmt.Errorf("%w: %s has no image registry", ErrUnknownAlgorithm, algorithm)
	}
	account, ok := accounts[region]
	if !ok {
		return "", fmt.Errorf("%w: %s is not served in %s", ErrUnknownRegion, algorithm, region)
	}
	return fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com", account, region), nil
}

// TrainImage returns <registry>/<algorithm>:<version>.
func TrainImage(region, algorithm, version string) (string, error) {
	registry, err := Registry(region, algorithm)
	if err != nil {
		return "", err
	}
	if version == "" {
		version = DefaultAlgorithmVersion
	}
	return fmt.Sprintf("%s/%s:%s", registry, algorithm, version), nil
}

// FrameworkImage returns the script-mode container image for a deep learning
// framework, e.g. sagemaker-tensorflow:1.11.0-cpu-py2.
func FrameworkImage(region, framework, version, instanceType, pyVersion string) (string, error) {
	if _, ok := firstPartyAccounts[region]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownRegion, region)
	}
	account := frameworkAccount
	if region == "us-gov-west-1" {
		account = govFrameworkAccount
	}
	if pyVersion == "" {
		pyVersion = "py2"
	}
	return fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com/sagemaker-%s:%s-%s-%s",
		account, region, framework, version, processorType(instanceType), pyVersion), nil
}

func processorType(instanceType string) string {
	family := strings.TrimPrefix(instanceType, "ml.")
	if strings.HasPrefix(family, "p") || strings.HasPrefix(family, "g") {
		return "gpu"
	}
	return "cpu"
}
