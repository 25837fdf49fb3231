package persistence

import "github.com/hitoshi/packman/internal/model"

// SampleDatabase は保存データが存在しない、または破損している場合に使う同梱サンプルを返す。
// 呼び出しごとに新しいインスタンスを返す。
func SampleDatabase() *model.Database {
	return &model.Database{
		Orders: []*model.Order{
			{
				OrderID:    "ORDER001",
				Parts:      []string{"PART001", "PART002", "PART003"},
				Customer:   "サンプル商事",
				Project:    "試験案件A",
				SupplyDate: "2024-04-01",
				Status:     model.OrderStatusPending,
			},
			{
				OrderID:    "ORDER002",
				Parts:      []string{"PART004", "PART005"},
				Customer:   "サンプル商事",
				Project:    "試験案件B",
				SupplyDate: "2024-04-02",
				Status:     model.OrderStatusPending,
			},
		},
	}
}
