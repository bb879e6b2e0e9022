package scenario

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BaSui01/agentforum/types"
)

// Record 是 scenarios 表的一行。
type Record struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:200;not null;uniqueIndex:idx_scenarios_name" json:"name"`
	Prompt1      string    `gorm:"column:prompt_ai1;type:text" json:"prompt_ai1"`
	Prompt2      string    `gorm:"column:prompt_ai2;type:text" json:"prompt_ai2"`
	Prompt3      string    `gorm:"column:prompt_ai3;type:text" json:"prompt_ai3"`
	Prompt4      string    `gorm:"column:prompt_ai4;type:text" json:"prompt_ai4"`
	Prompt5      string    `gorm:"column:prompt_ai5;type:text" json:"prompt_ai5"`
	InvitePrompt string    `gorm:"type:text" json:"invite_prompt"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Record) TableName() string {
	return "scenarios"
}

func (r *Record) slots() []*string {
	return []*string{&r.Prompt1, &r.Prompt2, &r.Prompt3, &r.Prompt4, &r.Prompt5}
}

func toRecord(s *Scenario) Record {
	r := Record{Name: strings.TrimSpace(s.Name), InvitePrompt: s.InvitePrompt}
	for i, p := range r.slots() {
		*p = s.Prompts[Slots[i]]
	}
	return r
}

func (r *Record) toScenario() *Scenario {
	s := &Scenario{Name: r.Name, InvitePrompt: r.InvitePrompt, Prompts: make(map[string]string, len(Slots))}
	for i, p := range r.slots() {
		s.Prompts[Slots[i]] = *p
	}
	return s
}

// DBSource 通过 gorm 读写 scenarios 表。
type DBSource struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ Source = (*DBSource)(nil)

// NewDBSource 创建数据库场景源
func NewDBSource(db *gorm.DB, logger *zap.Logger) *DBSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBSource{db: db, logger: logger.With(zap.String("component", "scenario_db"))}
}

// AutoMigrate 创建或更新 scenarios 表。sqlite 等没有迁移脚本的驱动使用。
func (s *DBSource) AutoMigrate() error {
	return s.db.AutoMigrate(&Record{})
}

// Load 按名称读取场景并校验
func (s *DBSource) Load(ctx context.Context, name string) (*Scenario, error) {
	var r Record
	err := s.db.WithContext(ctx).Where("name = ?", strings.TrimSpace(name)).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(name)
	}
	if err != nil {
		return nil, types.WrapError(err, types.ErrInternalError, "failed to load scenario")
	}
	sc := r.toScenario()
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// List 按名称排序返回全部场景名
func (s *DBSource) List(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.WithContext(ctx).Model(&Record{}).Order("name").Pluck("name", &names).Error; err != nil {
		return nil, types.WrapError(err, types.ErrInternalError, "failed to list scenarios")
	}
	return names, nil
}

// Save 校验后按名称 upsert 场景集合，在单个事务内完成。
func (s *DBSource) Save(ctx context.Context, scenarios []Scenario) error {
	if err := ValidateAll(scenarios); err != nil {
		return err
	}
	records := make([]Record, len(scenarios))
	for i := range scenarios {
		records[i] = toRecord(&scenarios[i])
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"prompt_ai1", "prompt_ai2", "prompt_ai3", "prompt_ai4", "prompt_ai5",
				"invite_prompt", "updated_at",
			}),
		}).Create(&records).Error
	})
	if err != nil {
		return types.WrapError(err, types.ErrInternalError, "failed to save scenarios")
	}
	s.logger.Info("scenarios saved", zap.Int("count", len(records)))
	return nil
}
