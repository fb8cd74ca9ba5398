package env

import (
	"os"
)

const (
	AWSID            = "AWS_ID"
	AWSSecret        = "AWS_SECRET"
	AWSToken         = "AWS_TOKEN"
	DynamoDBEndpoint = "DYNAMODB_ENDPOINT"
)

func Get(key string) string {
	return os.Getenv(key)
}
