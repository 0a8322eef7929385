// Package domain holds the core entities shared across services and
// repositories. Types here carry no behavior beyond simple derived checks;
// all business logic lives in the service packages.
package domain
