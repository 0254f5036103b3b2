package model

import (
	"github.com/asukhodko/dify-markdown-chunker-sub002/internal/chunker"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// validStrategies 请求中允许的策略名称
var validStrategies = map[string]bool{
	chunker.StrategyCode:       true,
	chunker.StrategyTable:      true,
	chunker.StrategyStructural: true,
	chunker.StrategyMixed:      true,
	chunker.StrategyList:       true,
	chunker.StrategySentence:   true,
}

// RegisterValidators 向gin的验证引擎注册自定义验证规则
// 在路由初始化前调用一次
func RegisterValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	_ = v.RegisterValidation("chunkstrategy", func(fl validator.FieldLevel) bool {
		return validStrategies[fl.Field().String()]
	})
}
