package api

import "github.com/qubitrhythm/disensor/internal/logging"

var log = logging.ForService("api")
