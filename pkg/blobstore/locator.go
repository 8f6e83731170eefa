package blobstore

import (
	"fmt"
	"strings"
)

// Locator builds the canonical virtual-hosted URL for key in bucket.
// Both the real and the simulated adapter return locators in this shape,
// so ExtractKey can recover the key without talking to the backend.
func Locator(bucket, key string) string {
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", bucket, key)
}

// ShortLocator builds the s3://bucket/key short form, used as the Path
// reference on chunk records.
func ShortLocator(bucket, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, key)
}

// ExtractKey recovers the storage key from a locator. Three shapes are
// understood, symmetric with how Put constructs locators:
//
//	https://bucket.s3.amazonaws.com/key        (virtual-hosted, optional region)
//	https://s3.amazonaws.com/bucket/key        (path style, optional region)
//	s3://bucket/key                            (short form)
//
// An unrecognized locator is returned unchanged so the caller can decide
// how to degrade.
func ExtractKey(locator, bucket string) string {
	if rest, ok := strings.CutPrefix(locator, "s3://"); ok {
		if key, ok := strings.CutPrefix(rest, bucket+"/"); ok {
			return key
		}
		return rest
	}

	const domain = ".amazonaws.com/"
	i := strings.Index(locator, domain)
	if i < 0 {
		return locator
	}
	host := locator[:i]
	key := locator[i+len(domain):]

	if h, ok := strings.CutPrefix(host, "https://"); ok {
		host = h
	} else {
		host = strings.TrimPrefix(host, "http://")
	}

	switch {
	case strings.HasPrefix(host, bucket+".s3"):
		return key
	case strings.HasPrefix(host, "s3"):
		if k, ok := strings.CutPrefix(key, bucket+"/"); ok {
			return k
		}
	}
	return locator
}
