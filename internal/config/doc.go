// Package config assembles the generator configuration once at startup.
//
// Values start from Default, are overlaid by FromEnv and finally by command
// line flags. Components receive the finished Config and never read the
// environment themselves.
package config
