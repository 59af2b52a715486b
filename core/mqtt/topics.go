// Package mqtt defines the topic layout shared by the job queue and the
// telemetry consumer.
//
//	<prefix>/<machine-id>/brew        brew jobs
//	<prefix>/<machine-id>/containers  container layout (retained)
//	<prefix>/<machine-id>/favourites  favourite recipes (retained)
//	<prefix>/state/<machine-id>       status reported by the machine
//	<prefix>/poll                     status poll request
//	<prefix>/response/<machine-id>    status poll response
package mqtt

import "strings"

// Topic suffixes.
const (
	KindBrew       = "brew"
	KindContainers = "containers"
	KindFavourites = "favourites"
)

// MachineTopic returns the topic of kind for machineID under prefix.
func MachineTopic(prefix, machineID, kind string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + machineID + "/" + kind
}

// Sub returns prefix/name.
func Sub(prefix, name string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + name
}

// Wildcard returns the filter matching one level below prefix.
func Wildcard(prefix string) string {
	return strings.TrimSuffix(prefix, "/") + "/+"
}

// MachineIDFromTopic returns the last topic level.
func MachineIDFromTopic(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}
