package app

import (
	"github.com/vk/moleculego/internal/registry"
	"github.com/vk/moleculego/modules/env_vars"
	"github.com/vk/moleculego/modules/http_request"
	"github.com/vk/moleculego/modules/print"
	"github.com/vk/moleculego/modules/socketio"
)

// coreModules is the definitive list of modules compiled into the binary.
var coreModules = []registry.Module{
	&env_vars.Module{},
	&http_request.Module{},
	&print.Module{},
	&socketio.Module{},
}
