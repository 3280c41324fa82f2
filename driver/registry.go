package driver

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/freenect2/logging"
)

// A Creator constructs a driver.
type Creator func(logger logging.Logger) (Driver, error)

var (
	registryMu     sync.RWMutex
	driverRegistry = map[string]Creator{}
)

// Register registers a driver under name. Drivers register themselves from init.
func Register(name string, creator Creator) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, old := driverRegistry[name]; old {
		panic(errors.Errorf("trying to register two drivers with same name %s", name))
	}
	if creator == nil {
		panic(errors.Errorf("cannot register a nil creator for driver %s", name))
	}
	driverRegistry[name] = creator
}

// Deregister removes a driver. It is meant for tests.
func Deregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(driverRegistry, name)
}

// New constructs the driver registered under name.
func New(name string, logger logging.Logger) (Driver, error) {
	registryMu.RLock()
	creator, ok := driverRegistry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("no driver registered with name %q (have %v)", name, Registered())
	}
	return creator(logger)
}

// Registered returns the sorted names of every registered driver.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(driverRegistry))
	for name := range driverRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
