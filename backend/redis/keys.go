package redis

type keys struct {
	prefix string
}

func newKeys(prefix string) *keys {
	return &keys{prefix: prefix}
}

// instanceKey holds the JSON encoded state of an instance
func (k *keys) instanceKey(instanceID string) string {
	return k.prefix + "instance:" + instanceID
}

// historyKey is a list of the executed events of an instance, the event with sequence id n is at index n-1
func (k *keys) historyKey(instanceID string) string {
	return k.prefix + "history:" + instanceID
}

// pendingEventsKey is a list of events waiting to be processed by the next workflow task, including timers
// that are not visible yet
func (k *keys) pendingEventsKey(instanceID string) string {
	return k.prefix + "pending-events:" + instanceID
}

// instanceActivitiesKey is a set of the ids of scheduled activities of an instance
func (k *keys) instanceActivitiesKey(instanceID string) string {
	return k.prefix + "instance-activities:" + instanceID
}

func (k *keys) activityKey(activityID string) string {
	return k.prefix + "activity:" + activityID
}

// readyInstances is a ZSET of instances with pending events. The score is the time in microseconds at which
// the instance can next be handed out, when its earliest pending event becomes visible or its lock expires.
func (k *keys) readyInstances() string {
	return k.prefix + "instances-ready"
}

// readyActivities is a ZSET of scheduled activities, scored like readyInstances
func (k *keys) readyActivities() string {
	return k.prefix + "activities-ready"
}

// instancesByCreation is a ZSET of all instances scored by their creation time
func (k *keys) instancesByCreation() string {
	return k.prefix + "instances-by-creation"
}

// instancesCompleted is a ZSET of instances in a final state scored by their completion time
func (k *keys) instancesCompleted() string {
	return k.prefix + "instances-completed"
}

func (k *keys) instancesActive() string {
	return k.prefix + "instances-active"
}
