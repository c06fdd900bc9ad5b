package config

import "errors"

const (
	DefaultHomeDirName = ".previz"
	DefaultDBDSN       = "file:./data/previz.db"
)

var (
	DefaultAnalysisTopic = "previz/analysis/requests"
)

var (
	ErrPrevizHomeNotSet       = errors.New("previz home directory is not set")
	ErrPrevizHomeExpandFailed = errors.New("failed to expand previz home directory")
)
